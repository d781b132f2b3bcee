package handlers

import (
	"net/http"

	"github.com/friendzone/backend/internal/metrics"
)

// Routes lists the paths registered by RegisterRoutes.
var Routes = []string{
	"/",
	"/healthz",
	"/metrics",
	"/register",
	"/login",
	"/refresh-token",
	"/verify-token",
	"/users",
	"/friend-request",
	"/friend-requests",
	"/accept-friend-request",
	"/reject-friend-request",
	"/friends",
	"/unfriend",
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.Limiter}
	users := UserHandler{Users: deps.Users}
	friends := FriendHandler{Relationships: deps.Relationships, Limiter: deps.Limiter, Metrics: deps.Metrics}

	mux.HandleFunc("/", Root)
	mux.HandleFunc("/healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}

	mux.HandleFunc("/register", auth.Register)
	mux.HandleFunc("/login", auth.Login)
	mux.HandleFunc("/refresh-token", auth.Refresh)
	mux.HandleFunc("/verify-token", auth.VerifyToken)
	mux.HandleFunc("/users", users.Search)

	mux.HandleFunc("/friend-request", friends.SendRequest)
	mux.HandleFunc("/friend-requests", friends.ListIncoming)
	mux.HandleFunc("/accept-friend-request", friends.Accept)
	mux.HandleFunc("/reject-friend-request", friends.Reject)
	mux.HandleFunc("/friends", friends.ListFriends)
	mux.HandleFunc("/unfriend", friends.Unfriend)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Relationships RelationshipService
	Limiter       RateLimiter
	Metrics       *metrics.Registry
	Database      Pinger
}
