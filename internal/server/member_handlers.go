package server

import (
	"net/http"

	"github.com/wolfeidau/taskflow/internal/auth"
	httpmiddleware "github.com/wolfeidau/taskflow/internal/http"
	"github.com/wolfeidau/taskflow/internal/members"
	"github.com/wolfeidau/taskflow/internal/models"
)

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=ADMIN MEMBER"`
}

type membersResponse struct {
	Members []members.Member `json:"members"`
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.members.List(ctx, auth.IdentityFromContext(ctx).OrgID)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, membersResponse{Members: list})
}

func (s *Server) inviteMember(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	m, err := s.members.Invite(ctx, identity.OrgID, identity.UserID, req.Email, models.Role(req.Role))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, m)
}
