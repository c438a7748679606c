package ivr

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProcessFunc kicks off post-call processing for a completed call. It
// runs asynchronously; the webhook response never waits for it.
type ProcessFunc func(ctx context.Context, callSID, phone string)

// NewRouter builds the IVR webhook surface. The provider requires
// well-formed TwiML on every /voice callback, so the handler degrades
// to an apology document on any internal failure rather than an HTTP
// error.
func NewRouter(m *Machine, process ProcessFunc) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
	})

	r.Post("/voice", func(w http.ResponseWriter, req *http.Request) {
		doc := func() (doc *Document) {
			defer func() {
				if rec := recover(); rec != nil {
					zap.L().Error("voice handler panicked", zap.Any("panic", rec))
					doc = ApologyDocument()
				}
			}()

			step, err := strconv.Atoi(req.URL.Query().Get("step"))
			if err != nil {
				step = 1
			}

			if err := req.ParseForm(); err != nil {
				zap.L().Error("parse voice form failed", zap.Error(err))
				return ApologyDocument()
			}

			return m.HandleStep(req.Context(), StepEvent{
				Step:    step,
				Digits:  req.PostForm.Get("Digits"),
				From:    req.PostForm.Get("From"),
				CallSID: req.PostForm.Get("CallSid"),
			})
		}()

		writeTwiML(w, doc)
	})

	r.Post("/call-complete", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		callSID := req.PostForm.Get("CallSid")
		from := req.PostForm.Get("From")

		m.HandleComplete(callSID, from)

		if process != nil {
			// Detached from the request context: processing outlives
			// the webhook.
			go process(context.WithoutCancel(req.Context()), callSID, from)
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

func writeTwiML(w http.ResponseWriter, doc *Document) {
	body, err := doc.Render()
	if err != nil {
		zap.L().Error("render twiml failed", zap.Error(err))
		body, _ = ApologyDocument().Render()
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
