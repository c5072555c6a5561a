package core

import "fmt"

// Localized placeholders used when retrieval produced no context.
const (
	NoContextChinese = "（你的问题在论文中未找到相关片段）"
	NoContextEnglish = "(No relevant passage was found in the paper regarding your question.)"

	ReferenceHeaderChinese = "===引用信息如下==="
	ReferenceHeaderEnglish = "===References==="
)

const chineseSystemPrompt = "你是一名论文问答助手，只根据提供的论文片段回答问题。" +
	"如果片段中没有答案，可以参考历史聊天信息回复，但必须说明论文中未找到相关信息。" +
	"使用与用户问题相同的语言作答。" +
	"每个关键结论后使用片段的引用标记，标记包含片段序号与页码，并使用中文方括号，例如：【引用1：第4页】、【引用2：第2页】。" +
	"不要编造引用，只能引用提供的片段。" +
	"在有帮助时加入简短准确的原文引用，并指出关键概念、方法与数据集。" +
	"回答结束后，可以结合历史聊天给出1到2个用户可能感兴趣的问题，例如：'你可能感兴趣的问题：1. ... 2. ...'。" +
	"最后将所有用到的引用按序号排序，统一在以下标题下列出，格式为“序号. 【引用序号：第几页】：引用内容”：\n" +
	ReferenceHeaderChinese + "\n" +
	"1. 【引用1：第4页】：引用内容\n" +
	"2. 【引用2：第2页】：引用内容\n"

const englishSystemPrompt = "You are a paper QA assistant. Answer only from the provided paper snippets. " +
	"If the snippets do not contain the answer, you may use the chat history, but say that the information was not found in the paper. " +
	"Respond in the same language as the user. " +
	"Cite each key conclusion with the snippet's citation mark, including its sequence number and page, for example [1: Page 4] or [2: Page 2]. " +
	"Never invent citations; cite only the provided snippets. " +
	"Use short direct quotes when helpful, and identify key concepts, methods and datasets when present. " +
	"After answering you may suggest one or two related questions the user might be interested in. " +
	"Finish with one consolidated list of every citation you used, sorted by sequence number, under this header:\n" +
	ReferenceHeaderEnglish + "\n" +
	"1. [1: Page 4]: quoted reference\n" +
	"2. [2: Page 2]: quoted reference\n"

// BuildPrompt returns the system instruction and the user turn for a grounded
// answer. An empty context is replaced by the localized placeholder.
func BuildPrompt(question, contextText string, chinese bool) (system, user string) {
	if chinese {
		if contextText == "" {
			contextText = NoContextChinese
		}
		user = fmt.Sprintf("用户问题：%s\n\n你可以参考以下可用论文片段：\n%s\n\n"+
			"根据以上要求直接回答。如果用户问题与论文内容无关，可以结合历史聊天信息给出相关说明，但不能脱离上下文回答。",
			question, contextText)
		return chineseSystemPrompt, user
	}

	if contextText == "" {
		contextText = NoContextEnglish
	}
	user = fmt.Sprintf("User question: %s\n\nYou can refer to the following available paper fragments:\n%s\n\n"+
		"Based on the above requirements, answer directly. If the question is not related to the paper, "+
		"you may summarize relevant information from the chat history, but you must not answer outside that context.",
		question, contextText)
	return englishSystemPrompt, user
}
