// Package api exposes the agency hub over HTTP with httprouter.
package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/teresa-solution/agency-hub-service/internal/realtime"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

// Deps are the collaborators of the HTTP layer
type Deps struct {
	Agencies    *service.AgencyService
	Events      *service.EventService
	Posts       *service.PostService
	Submissions *service.SubmissionService
	Guests      *service.GuestService
	GuestList   *service.GuestListService
	Intake      *service.IntakeService
	Profiles    *service.ProfileService
	Sessions    *service.SessionService
	Authz       *service.Authorizer
	Zoom        *service.Navigator
	Hub         *realtime.Hub
	Principals  PrincipalLoader
	Tokens      *Tokens

	// Limiter throttles every route; FormLimiter additionally guards the
	// public forms (sign up, login, guest list registration).
	Limiter     *RateLimiter
	FormLimiter *RateLimiter
}

type Handler struct {
	agencies    *service.AgencyService
	events      *service.EventService
	posts       *service.PostService
	submissions *service.SubmissionService
	guests      *service.GuestService
	guestList   *service.GuestListService
	intake      *service.IntakeService
	profiles    *service.ProfileService
	sessions    *service.SessionService
	authz       *service.Authorizer
	zoom        *service.Navigator
	hub         *realtime.Hub
	principals  PrincipalLoader
	tokens      *Tokens
	limiter     *RateLimiter
	formLimiter *RateLimiter

	router *httprouter.Router
}

func New(d Deps) *Handler {
	h := &Handler{
		agencies:    d.Agencies,
		events:      d.Events,
		posts:       d.Posts,
		submissions: d.Submissions,
		guests:      d.Guests,
		guestList:   d.GuestList,
		intake:      d.Intake,
		profiles:    d.Profiles,
		sessions:    d.Sessions,
		authz:       d.Authz,
		zoom:        d.Zoom,
		hub:         d.Hub,
		principals:  d.Principals,
		tokens:      d.Tokens,
		limiter:     d.Limiter,
		formLimiter: d.FormLimiter,
		router:      httprouter.New(),
	}
	h.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Rota não encontrada."})
	})
	h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) public(method, path string, handle httprouter.Handle) {
	h.router.Handle(method, path, observe(path, chain(h.limiter.Limit)(handle)))
}

func (h *Handler) form(method, path string, handle httprouter.Handle) {
	h.router.Handle(method, path, observe(path, chain(h.limiter.Limit, h.formLimiter.Limit)(handle)))
}

func (h *Handler) authed(method, path string, handle httprouter.Handle) {
	h.router.Handle(method, path, observe(path, chain(h.limiter.Limit, h.authenticate)(handle)))
}

func (h *Handler) routes() {
	// sessions and public pages
	h.public(http.MethodGet, "/api/plans", h.listPlans)
	h.form(http.MethodPost, "/api/auth/signup", h.signUp)
	h.form(http.MethodPost, "/api/auth/login", h.login)
	h.form(http.MethodPost, "/api/auth/password-reset", h.resetPassword)
	h.public(http.MethodGet, "/api/public/agencies/:slug", h.publicAgency)
	h.public(http.MethodGet, "/api/public/guest-lists/:agency/:event", h.publicGuestList)
	h.form(http.MethodPost, "/api/public/guest-list-events/:event/registrations", h.register)
	h.public(http.MethodPost, "/api/public/guest-list-events/:event/analytics", h.track)

	// current user
	h.authed(http.MethodGet, "/api/me", h.me)
	h.authed(http.MethodGet, "/api/me/grants", h.myGrants)
	h.authed(http.MethodGet, "/api/profile", h.getProfile)
	h.authed(http.MethodPut, "/api/profile", h.upsertProfile)

	// contributor intake
	h.authed(http.MethodGet, "/api/intake/events/:event", h.intakeOptions)
	h.authed(http.MethodPost, "/api/intake/events/:event/submissions", h.submit)

	// agencies
	h.authed(http.MethodGet, "/api/agencies", h.listAgencies)
	h.authed(http.MethodPost, "/api/agencies", h.createAgency)
	h.authed(http.MethodGet, "/api/agencies/:agency", h.getAgency)
	h.authed(http.MethodPatch, "/api/agencies/:agency", h.updateAgency)
	h.authed(http.MethodDelete, "/api/agencies/:agency", h.deleteAgency)
	h.authed(http.MethodPut, "/api/agencies/:agency/owner", h.setOwner)
	h.authed(http.MethodPost, "/api/agencies/:agency/admin", h.provisionAdmin)
	h.authed(http.MethodPost, "/api/agencies/:agency/checkout", h.startCheckout)
	h.authed(http.MethodGet, "/api/agencies/:agency/capabilities", h.capabilities)
	h.authed(http.MethodGet, "/api/agencies/:agency/rejection-templates", h.listRejectionTemplates)
	h.authed(http.MethodPost, "/api/agencies/:agency/rejection-templates", h.createRejectionTemplate)
	h.authed(http.MethodDelete, "/api/agencies/:agency/rejection-templates/:template", h.deleteRejectionTemplate)
	h.authed(http.MethodGet, "/api/agencies/:agency/ws", h.agencyUpdates)

	// events and posts
	h.authed(http.MethodGet, "/api/agencies/:agency/events", h.listEvents)
	h.authed(http.MethodPost, "/api/agencies/:agency/events", h.createEvent)
	h.authed(http.MethodGet, "/api/agencies/:agency/events/:event", h.getEvent)
	h.authed(http.MethodPut, "/api/agencies/:agency/events/:event", h.updateEvent)
	h.authed(http.MethodDelete, "/api/agencies/:agency/events/:event", h.deleteEvent)
	h.authed(http.MethodPost, "/api/agencies/:agency/events/:event/duplicate", h.duplicateEvent)
	h.authed(http.MethodPut, "/api/agencies/:agency/events/:event/requirements", h.replaceRequirements)
	h.authed(http.MethodPut, "/api/agencies/:agency/events/:event/faqs", h.replaceFAQs)
	h.authed(http.MethodGet, "/api/agencies/:agency/events/:event/posts", h.listPosts)
	h.authed(http.MethodPost, "/api/agencies/:agency/events/:event/posts", h.createPost)
	h.authed(http.MethodPut, "/api/agencies/:agency/posts/:post", h.updatePost)
	h.authed(http.MethodDelete, "/api/agencies/:agency/posts/:post", h.deletePost)

	// moderation
	h.authed(http.MethodGet, "/api/agencies/:agency/submissions", h.listSubmissions)
	h.authed(http.MethodPatch, "/api/agencies/:agency/submissions", h.bulkUpdateStatus)
	h.authed(http.MethodGet, "/api/agencies/:agency/submissions/:submission", h.getSubmission)
	h.authed(http.MethodDelete, "/api/agencies/:agency/submissions/:submission", h.deleteSubmission)
	h.authed(http.MethodGet, "/api/agencies/:agency/submissions/:submission/neighbors", h.neighbors)
	h.authed(http.MethodPost, "/api/agencies/:agency/submissions/:submission/status", h.updateStatus)
	h.authed(http.MethodPost, "/api/agencies/:agency/submissions/:submission/reopen", h.reopen)
	h.authed(http.MethodPost, "/api/agencies/:agency/submissions/:submission/move", h.move)
	h.authed(http.MethodGet, "/api/agencies/:agency/zoom", h.zoomState)
	h.authed(http.MethodPost, "/api/agencies/:agency/zoom", h.zoomOpen)
	h.authed(http.MethodDelete, "/api/agencies/:agency/zoom", h.zoomClose)
	h.authed(http.MethodPost, "/api/agencies/:agency/zoom/next", h.zoomNext)
	h.authed(http.MethodPost, "/api/agencies/:agency/zoom/previous", h.zoomPrevious)

	// guests
	h.authed(http.MethodGet, "/api/agencies/:agency/guests", h.listGrants)
	h.authed(http.MethodPost, "/api/agencies/:agency/guests", h.createGrant)
	h.authed(http.MethodPut, "/api/agencies/:agency/guests/:grant", h.updateGrant)
	h.authed(http.MethodDelete, "/api/agencies/:agency/guests/:grant", h.deleteGrant)

	// guest lists
	h.authed(http.MethodGet, "/api/agencies/:agency/guest-lists", h.listGuestLists)
	h.authed(http.MethodPost, "/api/agencies/:agency/guest-lists", h.createGuestList)
	h.authed(http.MethodPut, "/api/agencies/:agency/guest-lists/:event", h.updateGuestList)
	h.authed(http.MethodDelete, "/api/agencies/:agency/guest-lists/:event", h.deleteGuestList)
	h.authed(http.MethodGet, "/api/agencies/:agency/guest-lists/:event/dates", h.listDates)
	h.authed(http.MethodPost, "/api/agencies/:agency/guest-lists/:event/dates", h.createDate)
	h.authed(http.MethodGet, "/api/agencies/:agency/guest-lists/:event/registrations", h.listRegistrations)
	h.authed(http.MethodGet, "/api/agencies/:agency/guest-lists/:event/summary", h.guestListSummary)
	h.authed(http.MethodPut, "/api/agencies/:agency/guest-list-dates/:date", h.updateDate)
	h.authed(http.MethodDelete, "/api/agencies/:agency/guest-list-dates/:date", h.deleteDate)

	// exports
	h.authed(http.MethodGet, "/api/agencies/:agency/exports/submissions", h.exportSubmissions)
	h.authed(http.MethodGet, "/api/agencies/:agency/exports/guest-lists/:event", h.exportRegistrations)
}
