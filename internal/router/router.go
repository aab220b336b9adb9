// Package router wires the HTTP surface of the journal user service:
// the public listing and sign-up endpoints, the authenticated self-service
// endpoints and the operational ones.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/journalapp/internal/auth"
	"github.com/patric-chuzhbe/journalapp/internal/authenticator"
	"github.com/patric-chuzhbe/journalapp/internal/gzippedhttp"
	"github.com/patric-chuzhbe/journalapp/internal/ipchecker"
	"github.com/patric-chuzhbe/journalapp/internal/logger"
	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/service"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

type Router struct {
	svc *service.Service
}

// New builds the chi router. Only /user requires authentication;
// /internal/stats is limited to the trusted subnet.
func New(
	svc *service.Service,
	authMiddleware authenticator.Authenticator,
	ipChecker *ipchecker.IPChecker,
	corsAllowedOrigins []string,
) *chi.Mux {
	myRouter := Router{
		svc: svc,
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		logger.WithLoggingHTTPMiddleware,
		cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Content-Encoding", "Accept-Encoding", "Authorization"},
			ExposedHeaders: []string{"Authorization"},
			MaxAge:         300,
		}),
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
		// Inside the gzip writer so the 500 is what gets flushed.
		middleware.Recoverer,
	)

	router.Get(`/ping`, myRouter.GetPing)

	router.Get(`/public`, myRouter.GetPublic)
	router.Post(`/public/create`, myRouter.PostPublicCreate)

	router.With(authMiddleware.AuthenticateUser).Put(`/user`, myRouter.PutUser)
	router.With(authMiddleware.AuthenticateUser).Delete(`/user`, myRouter.DeleteUser)

	router.With(ipChecker.TrustedOnly).Get(`/internal/stats`, myRouter.GetInternalStats)

	return router
}

// GetPing answers 200 when the storage is reachable.
func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.svc.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `router.svc.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetPublic lists every user without credentials.
func (router *Router) GetPublic(response http.ResponseWriter, request *http.Request) {
	users, err := router.svc.GetAll(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `router.svc.GetAll()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusOK, models.NewUsersResponse(users))
}

// PostPublicCreate stores a new user and answers 200 with an empty body.
func (router *Router) PostPublicCreate(response http.ResponseWriter, request *http.Request) {
	var payload models.UserPayload
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		logger.Log.Debugln("Error decoding the user payload: ", zap.Error(err))
		response.WriteHeader(http.StatusBadRequest)
		return
	}

	err := router.svc.SaveNewUser(request.Context(), &user.User{
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		logger.Log.Debugln("Error calling the `router.svc.SaveNewUser()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// PutUser replaces the caller's username and password. A caller without a
// stored record gets 204 as well, and nothing changes.
func (router *Router) PutUser(response http.ResponseWriter, request *http.Request) {
	caller, ok := auth.CallerFromContext(request.Context())
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload models.UserPayload
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		logger.Log.Debugln("Error decoding the user payload: ", zap.Error(err))
		response.WriteHeader(http.StatusBadRequest)
		return
	}

	updated, err := router.svc.UpdateCallerCredentials(request.Context(), caller, payload.Username, payload.Password)
	if err != nil {
		logger.Log.Debugln("Error calling the `router.svc.UpdateCallerCredentials()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !updated {
		logger.Log.Debugln("No stored user for caller, nothing updated", "caller", caller.Username)
	}

	response.WriteHeader(http.StatusNoContent)
}

// DeleteUser removes the caller's record. Repeating it still answers 204.
func (router *Router) DeleteUser(response http.ResponseWriter, request *http.Request) {
	caller, ok := auth.CallerFromContext(request.Context())
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := router.svc.DeleteCaller(request.Context(), caller); err != nil {
		logger.Log.Debugln("Error calling the `router.svc.DeleteCaller()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusNoContent)
}

func (router *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	count, err := router.svc.CountUsers(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `router.svc.CountUsers()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusOK, models.InternalStatsResponse{Users: count})
}

func writeJSON(response http.ResponseWriter, status int, body any) {
	responseBody, err := json.Marshal(body)
	if err != nil {
		logger.Log.Debugln("Error calling the `json.Marshal()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if _, err := response.Write(responseBody); err != nil {
		logger.Log.Debugln("Error writing the response body: ", zap.Error(err))
	}
}
