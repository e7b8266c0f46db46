package storage

import "time"

// TurnRecord 记录一轮问答的最终结果，用于历史回看与效果分析。
//
// 一条记录对应一次完整的 Agent 回合（从用户提问到最终回答或失败），
// 中间每次工具调用的细节另见 AuditRecord（通过 TraceID 关联）。
type TurnRecord struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 串联本回合内的所有审计记录。
	TraceID string `gorm:"size:64;not null;index"`
	// Question 为用户原始问题。
	Question string `gorm:"type:text;not null"`
	// Answer 为最终回答；失败的回合为空串。
	Answer string `gorm:"type:text"`
	// SearchCount/RewriteCount 为本回合消耗的搜索与改写次数。
	SearchCount  int `gorm:"not null"`
	RewriteCount int `gorm:"not null"`
	// Status 表示回合结果（success/failed），用于快速筛选与统计。
	Status string `gorm:"size:32;not null;index"`
	// ErrorMessage 存放失败时的错误信息（可选）。
	ErrorMessage string `gorm:"type:text"`
	// StartedAt/FinishedAt 表示回合起止时间，统计耗时可用 FinishedAt-StartedAt。
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time `gorm:"index"`
	// CreatedAt 为记录写入数据库的时间，默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}

// AuditRecord 记录一次工具调用及其结果，用于审计、追溯与后续分析。
//
// 一条审计记录对应一次检索工具的执行。复杂入参/输出统一以 JSON 字符串存放，
// 便于快速落地与版本演进。
type AuditRecord struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 用于串联一次回合内的多次调用，便于按链路聚合审计。
	TraceID string `gorm:"size:64;index"`
	// Action 表示执行的动作（稳定的工具名，例如向量库名）。
	Action string `gorm:"size:128;not null;index"`
	// ParamsJSON 存放动作入参（JSON 字符串），例如检索查询。
	ParamsJSON string `gorm:"type:text"`
	// ResultJSON 存放动作结果（JSON 字符串或截断后的检索文本）。
	ResultJSON string `gorm:"type:text"`
	// Status 表示执行状态（running/success/failed），用于快速筛选与统计。
	Status string `gorm:"size:32;not null;index"`
	// ErrorMessage 存放失败时的错误信息（可选，便于检索）。
	ErrorMessage string `gorm:"type:text"`
	// StartedAt/FinishedAt 表示动作起止时间（可选）。
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time `gorm:"index"`
	// CreatedAt 为记录写入数据库的时间（与 StartedAt 含义不同），默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}
