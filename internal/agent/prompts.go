package agent

import (
	"strings"
	"unicode/utf8"
)

// SystemPromptTemplate 定义系统提示词。
// 要求模型在回答前必须调用检索工具，而不是凭空作答。
const SystemPromptTemplate = `You are a document question answering assistant.
You answer questions strictly from content stored in the configured document collections.

You MUST follow these rules:
1. Before answering, ALWAYS search the document collections using the retrieval tools provided.
2. Pick the single most relevant collection for the question and call its tool with a focused search query.
3. Base your answer only on retrieved content. Never invent facts that are not in the documents.
4. If nothing relevant is found, say so instead of guessing.`

// gradePromptTemplate 是宽松的相关性评审提示词。
// 只要内容与问题有部分主题重叠就判为相关，避免误杀。
const gradePromptTemplate = `You are a grader assessing relevance of retrieved documents to a user question.
Here is the retrieved content:

{context}

Here is the user question: {question}

Grade as 'yes' if ANY of the following are true:
- The content contains keywords related to the question
- The content discusses topics related to the question's domain
- The content provides context that could help answer the question
- The content is from a similar subject area as the question

Only grade as 'no' if the content is completely unrelated or off-topic.
Be lenient - partial relevance is acceptable.
Respond with a JSON object: {"binary_score": "yes"} or {"binary_score": "no"}.`

// rewritePromptTemplate 指导模型在保持原意的前提下改写问题，便于检索。
const rewritePromptTemplate = `Analyze the following question and rephrase it to make it clearer and more specific for document retrieval, while maintaining the core intent.

Original question: {question}

Guidelines for rewriting:
- Keep the main topic and intent unchanged
- Add synonyms or related terms that might appear in documents
- Make it more general if it's too specific, or add context if it's too vague
- Use common terminology that would appear in formal documents
- Keep it concise (1-2 sentences maximum)

Rewritten question:`

// answerPromptTemplate 要求仅依据给定上下文作答，2-4 句。
const answerPromptTemplate = `Answer this question based ONLY on the context provided below. Be direct and concise (2-4 sentences).

Question: {question}

Context:
{context}

Answer:`

// noContextPromptTemplate 在没有可用上下文时使用，引导用户换个问法。
const noContextPromptTemplate = `I couldn't find relevant information in the document collections to answer: {question}

Please provide a brief, helpful response suggesting the user try rephrasing their question.`

// MaxSearchesFallback 是搜索次数耗尽时直接返回的终止消息。
const MaxSearchesFallback = "I've searched multiple times but couldn't find highly relevant information. Please try rephrasing your question or ask something else."

// retryNudge 在要求必须检索但模型没有发起工具调用时，追加到对话里促使重试。
const retryNudge = `You responded without searching the document collections. You MUST call one of the retrieval tools with a search query before answering.`

// 喂给评审器/回答器的上下文截断上限，控制 token 消耗。
const (
	gradeContextLimit  = 2000
	answerContextLimit = 3000
	// 短上下文阈值按字符（rune）计，截断上限按字节计
	shortContextChars = 50
)

// Prompts 在 Agent 构造时创建一次，显式传给需要它的节点，
// 避免包级单例。
type Prompts struct {
	System string
}

func NewPrompts() *Prompts {
	return &Prompts{System: SystemPromptTemplate}
}

// GradePrompt 渲染评审提示词，上下文截断到 gradeContextLimit。
func (p *Prompts) GradePrompt(question, context string) string {
	return strings.NewReplacer(
		"{question}", question,
		"{context}", truncateRunesafe(context, gradeContextLimit),
	).Replace(gradePromptTemplate)
}

// RewritePrompt 渲染改写提示词。
func (p *Prompts) RewritePrompt(question string) string {
	return strings.NewReplacer("{question}", question).Replace(rewritePromptTemplate)
}

// AnswerPrompt 渲染回答提示词。上下文不足 shortContextChars 时
// 改用 "未找到相关信息" 的变体。
func (p *Prompts) AnswerPrompt(question, context string) string {
	if utf8.RuneCountInString(strings.TrimSpace(context)) < shortContextChars {
		return strings.NewReplacer("{question}", question).Replace(noContextPromptTemplate)
	}
	return strings.NewReplacer(
		"{question}", question,
		"{context}", truncateRunesafe(context, answerContextLimit),
	).Replace(answerPromptTemplate)
}

// truncateRunesafe 按字节上限截断，但不切断多字节字符。
func truncateRunesafe(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
