package http

import (
	"context"
	"net/http"
	"strings"

	"pocketplan/internal/auth"
	"pocketplan/internal/log"
	"pocketplan/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := ParseListQuery(r.URL.Query())
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		txs := l.Transactions(q)
		NewJSONResponse().Set("transactions", txs).Set("count", len(txs)).Write(w)
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		tx, n := l.AddTransaction(ctx, req.transaction())
		s.recordMutation(n)
		if !n.OK() {
			FailedNotification(n).Write(w)
			return
		}
		NewJSONResponse().Status(http.StatusCreated).Set("transaction", tx).Notification(n).Write(w)
	})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	var req transactionPatchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	patch := req.patch()
	if patch.IsEmpty() {
		BadRequestError("nothing to update").Write(w)
		return
	}
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		tx, n := l.UpdateTransaction(ctx, id, patch)
		s.recordMutation(n)
		if !n.OK() {
			FailedNotification(n).Write(w)
			return
		}
		NewJSONResponse().Set("transaction", tx).Notification(n).Write(w)
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		n := l.DeleteTransaction(ctx, id)
		s.recordMutation(n)
		if !n.OK() {
			FailedNotification(n).Write(w)
			return
		}
		NewJSONResponse().Set("id", id).Notification(n).Write(w)
	})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	q := ParseListQuery(r.URL.Query())
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		goals := l.Goals(q)
		NewJSONResponse().Set("goals", goals).Set("count", len(goals)).Write(w)
	})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		g, n := l.AddGoal(ctx, req.goal())
		s.recordMutation(n)
		if !n.OK() {
			FailedNotification(n).Write(w)
			return
		}
		NewJSONResponse().Status(http.StatusCreated).Set("goal", g).Notification(n).Write(w)
	})
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	var req goalPatchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	patch := req.patch()
	if patch.IsEmpty() {
		BadRequestError("nothing to update").Write(w)
		return
	}
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		g, n := l.UpdateGoal(ctx, id, patch)
		s.recordMutation(n)
		if !n.OK() {
			FailedNotification(n).Write(w)
			return
		}
		NewJSONResponse().Set("goal", g).Notification(n).Write(w)
	})
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		n := l.DeleteGoal(ctx, id)
		s.recordMutation(n)
		if !n.OK() {
			FailedNotification(n).Write(w)
			return
		}
		NewJSONResponse().Set("id", id).Notification(n).Write(w)
	})
}

// currentUser loads the caller's account, or the demo user.
func (s *Server) currentUser(ctx context.Context, id identity) (auth.User, error) {
	if id.Demo {
		return demoUser(), nil
	}
	if s.provider == nil {
		return auth.User{}, auth.ErrNotLoggedIn
	}
	return s.provider.Account(ctx, id.UserID)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		u, err := s.currentUser(ctx, id)
		if err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Profile lookup failed", log.FieldError, err)
			writeError(w, err)
			return
		}
		NewJSONResponse().
			Set("user", u).
			Set("baseBalance", l.BaseBalance()).
			Set("demo", id.Demo).
			Write(w)
	})
}

// handlePatchProfile updates identity fields through the auth session and
// the base balance through the ledger. Demo sessions may only change the
// base balance.
func (s *Server) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req profileRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if !req.identityChange() && req.BaseBalance == nil {
		BadRequestError("nothing to update").Write(w)
		return
	}
	if req.identityChange() && (id.Demo || s.provider == nil) {
		writeError(w, auth.ErrNotLoggedIn)
		return
	}

	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		u, err := s.currentUser(ctx, id)
		if err != nil {
			writeError(w, err)
			return
		}

		if req.identityChange() {
			session := auth.NewSession(s.provider, s.logger)
			session.Restore(u)
			u, err = session.UpdateProfile(ctx, auth.ProfileUpdate{
				ProfilePatch: req.patch(),
				Password:     req.Password,
				Confirm:      req.Confirm,
			})
			if err != nil {
				log.FromContext(ctx).WarnContext(ctx, "Profile update rejected", log.FieldError, err)
				writeError(w, err)
				return
			}
		}

		resp := NewJSONResponse()
		if req.BaseBalance != nil {
			n := l.SetBaseBalance(ctx, *req.BaseBalance)
			s.recordMutation(n)
			if !n.OK() {
				FailedNotification(n).Write(w)
				return
			}
			resp.Notification(n)
		}
		resp.Set("user", u).Set("baseBalance", l.BaseBalance()).Set("demo", id.Demo).Write(w)
	})
}
