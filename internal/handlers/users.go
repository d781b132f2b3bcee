package handlers

import (
	"net/http"
	"strings"

	"github.com/friendzone/backend/internal/logging"
)

// UserHandler serves the user directory.
type UserHandler struct {
	Users UserStore
}

// Search handles GET /users?search=&excludeUserId=. An excludeUserId that is
// not a valid id is ignored rather than rejected.
func (h UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, messageResponse{Message: "Error fetching users"})
		return
	}

	query := r.URL.Query()
	search := strings.TrimSpace(query.Get("search"))
	exclude := strings.TrimSpace(query.Get("excludeUserId"))
	if !validID(exclude) {
		exclude = ""
	}

	users, err := h.Users.Search(ctx, search, exclude)
	if err != nil {
		logger.Error("user search failed", "error", err, "search", search)
		respondJSON(ctx, w, http.StatusInternalServerError, messageResponse{Message: "Error fetching users"})
		return
	}

	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user.Summary()))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}
