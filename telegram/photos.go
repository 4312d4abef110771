package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/itsm0000/al-muallim-bot/models"
	"github.com/itsm0000/al-muallim-bot/services"
)

func (r *Router) acceptPhoto(ctx context.Context, msg tgbotapi.Message) {
	cid := msg.Chat.ID

	// take the largest preview
	ph := msg.Photo[len(msg.Photo)-1]
	file, err := r.Bot.GetFile(tgbotapi.FileConfig{FileID: ph.FileID})
	if err != nil {
		log.Error().Err(err).Int64("chat_id", cid).Msg("BOT: GetFile failed")
		r.send(cid, "تعذر تحميل الصورة من تيليجرام، حاول مرة أخرى.")
		return
	}
	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", r.Bot.Token, file.FilePath)
	img, err := download(url)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", cid).Msg("BOT: photo download failed")
		r.send(cid, "تعذر تحميل الصورة من تيليجرام، حاول مرة أخرى.")
		return
	}

	question, subject, complete := r.state(cid).addPhoto(img)
	if !complete {
		r.send(cid, "تم استلام صورة السؤال. أرسل الآن صورة إجابة الطالب.")
		return
	}

	r.send(cid, "جارٍ التصحيح...")
	r.grade(ctx, cid, question, img, subject)
}

func (r *Router) grade(ctx context.Context, cid int64, question, answer []byte, subject string) {
	outcome, err := r.Orchestrator.Run(ctx, question, answer, subject)
	if err != nil {
		r.sendGradingError(cid, err)
		return
	}

	photo := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{
		Name:  "graded.jpg",
		Bytes: outcome.AnnotatedImage,
	})
	photo.Caption = resultCaption(outcome)
	if _, err := r.Bot.Send(photo); err != nil {
		log.Error().Err(err).Int64("chat_id", cid).Msg("BOT: sending annotated photo failed")
		// fall back to the text part alone
		r.send(cid, resultCaption(outcome))
	}
}

func resultCaption(outcome *models.GradingOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "الدرجة: %.1f من %.0f\n\n", outcome.Result.Score, outcome.Result.MaxScore)
	b.WriteString(outcome.Result.Feedback)
	if len(outcome.Result.Annotations) > 0 {
		b.WriteString("\n\n🟩 صحيح  🟥 خطأ  🟨 صحيح جزئياً  🟧 غير واضح")
	}
	if outcome.DroppedAnnotations > 0 {
		fmt.Fprintf(&b, "\n(تعذر رسم %d من العلامات خارج حدود الصورة)", outcome.DroppedAnnotations)
	}
	return b.String()
}

func (r *Router) sendGradingError(cid int64, err error) {
	reason := services.FailureReason(err)
	log.Error().Err(err).Str("reason", string(reason)).Int64("chat_id", cid).Msg("BOT: grading failed")

	switch reason {
	case services.ReasonTimeout:
		r.send(cid, "انتهت مهلة التصحيح. حاول مرة أخرى بعد قليل.")
	case services.ReasonRefused:
		r.send(cid, "رفض النموذج تصحيح هذه الصورة. تأكد من أنها ورقة إجابة واضحة وأعد المحاولة.")
	case services.ReasonMalformedResponse:
		r.send(cid, "تعذر فهم رد النموذج. أعد إرسال الصورتين من جديد.")
	case services.ReasonBadImage:
		r.send(cid, "تعذر قراءة الصورة. أرسل صورة بصيغة JPEG أو PNG.")
	case services.ReasonFailed:
		r.send(cid, "تعذر إكمال التصحيح لهذا الطلب.")
	default:
		r.send(cid, "حدث خطأ مؤقت أثناء التصحيح. حاول مرة أخرى.")
	}
}

func download(url string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
