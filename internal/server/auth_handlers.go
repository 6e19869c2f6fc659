package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/account"
	"github.com/wolfeidau/taskflow/internal/auth"
	"github.com/wolfeidau/taskflow/internal/errs"
	httpmiddleware "github.com/wolfeidau/taskflow/internal/http"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/provision"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	OrgName  string `json:"org_name" validate:"required,max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type switchRequest struct {
	OrgID string `json:"org_id" validate:"required,uuid"`
}

type createOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type sessionResponse struct {
	User         *models.User         `json:"user"`
	Organization *models.Organization `json:"organization"`
	Role         models.Role          `json:"role"`
	AccessToken  string               `json:"access_token,omitempty"`
}

func toSessionResponse(sess *account.Session) sessionResponse {
	return sessionResponse{
		User:         sess.User,
		Organization: sess.Organization,
		Role:         sess.Role,
		AccessToken:  sess.AccessToken,
	}
}

// setSessionCookies writes the tokens the session carries.
func (s *Server) setSessionCookies(w http.ResponseWriter, sess *account.Session) {
	ttls := s.accounts.TTLs()
	if sess.AccessToken != "" {
		s.cookies.Set(w, auth.AccessTokenCookie, sess.AccessToken, ttls.Access)
	}
	if sess.RefreshToken != "" {
		s.cookies.Set(w, auth.RefreshTokenCookie, sess.RefreshToken, ttls.Refresh)
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	reg, err := s.orchestrator.Register(r.Context(), provision.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		OrgName:  req.OrgName,
	})
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	sess, err := s.accounts.Start(r.Context(), reg.User, reg.Organization.ID)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	s.setSessionCookies(w, sess)
	httpmiddleware.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	sess, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	s.setSessionCookies(w, sess)
	httpmiddleware.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(auth.RefreshTokenCookie)
	if err != nil || c.Value == "" {
		httpmiddleware.WriteError(w, r, errs.New(errs.Unauthorized, "authentication required"))
		return
	}

	sess, err := s.accounts.Refresh(r.Context(), c.Value)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	s.setSessionCookies(w, sess)
	httpmiddleware.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.cookies.Clear(w, auth.AccessTokenCookie)
	s.cookies.Clear(w, auth.RefreshTokenCookie)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role, _ := auth.RoleFromContext(ctx)

	sess, err := s.accounts.Me(ctx, auth.IdentityFromContext(ctx), role)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) switchOrganization(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	ctx := r.Context()
	sess, err := s.accounts.Switch(ctx, auth.IdentityFromContext(ctx), uuid.MustParse(req.OrgID))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	s.setSessionCookies(w, sess)
	httpmiddleware.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

// createOrganization provisions another organization owned by the caller. The
// caller's current organization moves to it; the token is not reissued.
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	ctx := r.Context()
	org, err := s.orchestrator.ProvisionOrganization(ctx, auth.IdentityFromContext(ctx).UserID, req.Name)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, org)
}
