package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerAuthorizedRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	registerAuthorizedProposalRoutes(mux, handler, verifier)
	registerAuthorizedMatchRoutes(mux, handler, verifier)
	registerAuthorizedTeamRoutes(mux, handler, verifier)
}

func registerAuthorizedProposalRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/proposals", RequireAuth(verifier, http.HandlerFunc(handler.CreateProposal)))
	mux.Handle("GET /v1/proposals/{proposalID}", RequireAuth(verifier, http.HandlerFunc(handler.GetProposal)))
	mux.Handle("POST /v1/proposals/{proposalID}/confirm", RequireAuth(verifier, http.HandlerFunc(handler.ConfirmSlot)))
	mux.Handle("POST /v1/proposals/{proposalID}/withdraw", RequireAuth(verifier, http.HandlerFunc(handler.WithdrawConfirmation)))
	mux.Handle("POST /v1/proposals/{proposalID}/cancel", RequireAuth(verifier, http.HandlerFunc(handler.CancelProposal)))
	mux.Handle("PATCH /v1/proposals/{proposalID}/settings", RequireAuth(verifier, http.HandlerFunc(handler.UpdateProposalSettings)))
}

func registerAuthorizedMatchRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/matches/quick-add", RequireAuth(verifier, http.HandlerFunc(handler.QuickAddMatch)))
	mux.Handle("GET /v1/matches/{matchID}", RequireAuth(verifier, http.HandlerFunc(handler.GetMatch)))
	mux.Handle("POST /v1/matches/{matchID}/cancel", RequireAuth(verifier, http.HandlerFunc(handler.CancelMatch)))
	mux.Handle("POST /v1/matches/{matchID}/reschedule", RequireAuth(verifier, http.HandlerFunc(handler.RescheduleMatch)))
}

func registerAuthorizedTeamRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("GET /v1/teams/{teamID}", RequireAuth(verifier, http.HandlerFunc(handler.GetTeam)))
	mux.Handle("GET /v1/teams/{teamID}/proposals", RequireAuth(verifier, http.HandlerFunc(handler.ListTeamProposals)))
	mux.Handle("GET /v1/teams/{teamID}/matches", RequireAuth(verifier, http.HandlerFunc(handler.ListTeamMatches)))
	mux.Handle("GET /v1/teams/{teamID}/blocked-slots", RequireAuth(verifier, http.HandlerFunc(handler.ListBlockedSlots)))
	mux.Handle("GET /v1/teams/{teamID}/events", RequireAuth(verifier, http.HandlerFunc(handler.ListTeamEvents)))
	mux.Handle("PUT /v1/teams/{teamID}/schedulers", RequireAuth(verifier, http.HandlerFunc(handler.SetSchedulerRights)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/big4-import", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunBig4ImportJob)))
}
