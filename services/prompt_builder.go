package services

import (
	"fmt"
	"strings"

	"github.com/itsm0000/al-muallim-bot/models"
)

// PromptBuilder assembles the grading request for one attempt. Build is pure:
// for a fixed max score, identical excerpts always yield byte-identical
// instruction text, so repeated grading of the same submission sends the same
// prompt. Only the image blobs vary between requests.
type PromptBuilder struct {
	maxScore int
}

func NewPromptBuilder(maxScore int) *PromptBuilder {
	return &PromptBuilder{maxScore: maxScore}
}

// MaxScore is the grading scale communicated to the model.
func (b *PromptBuilder) MaxScore() int { return b.maxScore }

// Build combines both images and the curriculum excerpts into a single
// GradingRequest. No side effects.
func (b *PromptBuilder) Build(questionImage, answerImage []byte, excerpts []string) models.GradingRequest {
	return models.GradingRequest{
		QuestionImage:     questionImage,
		AnswerImage:       answerImage,
		CurriculumContext: excerpts,
		Instructions:      b.instructions(excerpts),
	}
}

func (b *PromptBuilder) instructions(excerpts []string) string {
	var sb strings.Builder

	sb.WriteString("أنت \"المعلم\" (Al-Muallim)، مُصحح فيزياء دقيق جداً ومتسق.\n\n")

	if len(excerpts) > 0 {
		sb.WriteString("## المنهج الدراسي (مرجع الإجابات):\n")
		for i, excerpt := range excerpts {
			fmt.Fprintf(&sb, "\n### مقتطف %d\n%s\n", i+1, excerpt)
		}
		sb.WriteString("\nاعتمد على المنهج أعلاه كمرجع أساسي عند الحكم على الإجابات.\n\n")
	} else {
		sb.WriteString("## تنبيه: لا يتوفر مقتطف من المنهج لهذا السؤال، فاعتمد على المعرفة الفيزيائية العامة بحذر.\n\n")
	}

	fmt.Fprintf(&sb, `## قواعد التقييم:
1. اقرأ صورة السؤال أولاً لتفهم بالضبط ماذا يُطلب من الطالب.
2. قارن إجابة الطالب بالإجابة الصحيحة، وتحقق مرتين قبل الحكم.
3. اذكر الأسئلة غير المجاب عنها في feedback.
4. تقبل الاختلافات البسيطة في الصياغة إذا كان المعنى صحيحاً.
5. الدرجة من 0 إلى %d. التقدير الجزئي يُعبَّر عنه فقط عبر اللون "partial" في annotations، لا بقيم لونية أخرى.

## متطلبات الإخراج — JSON فقط، بهذا الشكل حرفياً:

{
  "score": <رقم من 0 إلى %d>,
  "max_score": %d,
  "feedback": "<نقاط واضحة ومباشرة بالعربية>",
  "annotations": [
    {
      "coords": [x_min, y_min, x_max, y_max],
      "color": "correct|mistake|partial|unclear",
      "note": "<ملاحظة قصيرة>"
    }
  ]
}

## اتفاقية الإحداثيات (حرجة):
- coords بالبكسل على صورة إجابة الطالب الأصلية (الصورة الثانية) بأبعادها الأصلية.
- نقطة الأصل أعلى اليسار؛ x يزداد يميناً و y يزداد نزولاً.
- الترتيب: [x_min, y_min, x_max, y_max] حيث x_min < x_max و y_min < y_max.

## قيم color المسموحة فقط:
- "correct": صحيح 100%%
- "mistake": خاطئ
- "partial": جزئياً صحيح
- "unclear": غير واضح ولا يمكن قراءته

كل إجابة أو خطوة = عنصر annotation واحد، ولا تدمج عدة أسطر في عنصر واحد.
أخرج JSON فقط دون أي نص آخر، وأدرج الحقول الأربعة كلها دائماً حتى لو كانت annotations قائمة فارغة.
`, b.maxScore, b.maxScore, b.maxScore)

	return sb.String()
}

// answerBridgeText separates the two image parts in the model request so the
// model cannot confuse which image is the question and which is the answer.
const answerBridgeText = "الصورة أعلاه هي السؤال. والآن إليك إجابة الطالب:"

// correctiveInstruction is appended for the single bounded retry after a
// schema violation.
func correctiveInstruction(violation error) string {
	return fmt.Sprintf(
		"إجابتك السابقة لم تطابق المخطط المطلوب (%v). أعد إخراج JSON صالحاً يطابق المخطط حرفياً: الحقول score و max_score و feedback و annotations كلها مطلوبة، coords أربعة أرقام، و color واحدة فقط من correct|mistake|partial|unclear.",
		violation,
	)
}
