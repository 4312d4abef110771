package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/itsm0000/al-muallim-bot/services"
	"github.com/itsm0000/al-muallim-bot/store"
)

// Router drives the Telegram conversation. A teacher sends the question
// photo, then the student's answer photo; the bot replies with the annotated
// sheet and the grade.
type Router struct {
	Bot          *tgbotapi.BotAPI
	Orchestrator services.Orchestrator
	Curriculum   services.CurriculumService
	Store        *store.Store // optional, enables /link

	// per-chat conversation state
	states sync.Map
}

// chatState is the per-chat conversation state. Updates are handled on one
// goroutine per update, so two messages from the same chat can be in flight at
// once (Telegram delivers an album as separate photo messages); every
// read-modify-write holds the mutex.
type chatState struct {
	mu            sync.Mutex
	questionImage []byte
	subject       string
}

// addPhoto stores the first photo of a pair as the question. The second photo
// completes the pair: the pending question and subject come back and the state
// resets for the next submission.
func (s *chatState) addPhoto(img []byte) (question []byte, subject string, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.questionImage == nil {
		s.questionImage = img
		return nil, "", false
	}
	question, subject = s.questionImage, s.subject
	s.questionImage, s.subject = nil, ""
	return question, subject, true
}

func (s *chatState) setSubject(subject string) {
	s.mu.Lock()
	s.subject = subject
	s.mu.Unlock()
}

func (s *chatState) reset() {
	s.mu.Lock()
	s.questionImage, s.subject = nil, ""
	s.mu.Unlock()
}

func NewRouter(bot *tgbotapi.BotAPI, orch services.Orchestrator, curriculum services.CurriculumService, st *store.Store) *Router {
	return &Router{Bot: bot, Orchestrator: orch, Curriculum: curriculum, Store: st}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	cid := upd.Message.Chat.ID

	if upd.Message.IsCommand() {
		r.handleCommand(ctx, upd)
		return
	}

	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(ctx, *upd.Message)
		return
	}

	if text := strings.TrimSpace(upd.Message.Text); text != "" {
		// A bare text message selects the subject for the next grading.
		r.state(cid).setSubject(text)
		r.send(cid, "تم اختيار المادة: "+text+"\nأرسل الآن صورة السؤال.")
		return
	}

	r.send(cid, "أرسل صورة السؤال ثم صورة إجابة الطالب.")
}

func (r *Router) handleCommand(ctx context.Context, upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	switch upd.Message.Command() {
	case "start":
		r.send(cid, "أهلاً بك في المعلم الآلي.\n"+
			"أرسل صورة السؤال، ثم صورة إجابة الطالب، وسأعيد لك الورقة مصححة.\n"+
			"يمكنك كتابة اسم المادة أولاً لتحديد الدرس.\n"+
			"الأوامر: /subjects لعرض المواد، /cancel لإلغاء العملية الحالية.")
	case "link":
		r.linkAccount(ctx, upd)
	case "subjects":
		subjects := r.Curriculum.Subjects()
		if len(subjects) == 0 {
			r.send(cid, "لا توجد مواد محملة حالياً.")
			return
		}
		r.send(cid, "المواد المتاحة:\n- "+strings.Join(subjects, "\n- "))
	case "cancel":
		r.state(cid).reset()
		r.send(cid, "تم الإلغاء. أرسل صورة السؤال للبدء من جديد.")
	default:
		r.send(cid, "أمر غير معروف. جرب /start")
	}
}

// linkAccount ties this chat to a teacher account by phone number, so the
// dashboard and the bot show the same history.
func (r *Router) linkAccount(ctx context.Context, upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	if r.Store == nil {
		r.send(cid, "ربط الحسابات غير مفعل على هذا الخادم.")
		return
	}
	phone := strings.TrimSpace(upd.Message.CommandArguments())
	if phone == "" {
		r.send(cid, "الاستخدام: ‎/link +9665XXXXXXXX")
		return
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	teacher, err := r.Store.UpsertTeacher(ctx, phone, upd.Message.From.FirstName, time.Now())
	if err == nil {
		err = r.Store.LinkTelegram(ctx, teacher.ID, cid)
	}
	if err != nil {
		log.Error().Err(err).Int64("chat_id", cid).Msg("BOT: linking account failed")
		r.send(cid, "تعذر ربط الحساب، حاول مرة أخرى لاحقاً.")
		return
	}
	r.send(cid, "تم ربط حسابك برقم "+phone)
}

func (r *Router) state(cid int64) *chatState {
	v, _ := r.states.LoadOrStore(cid, &chatState{})
	return v.(*chatState)
}

func (r *Router) send(cid int64, text string) {
	msg := tgbotapi.NewMessage(cid, text)
	if _, err := r.Bot.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", cid).Msg("BOT: sending message failed")
	}
}
