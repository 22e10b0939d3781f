package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/softdesk/apiserver/internal/auth"
	"github.com/softdesk/apiserver/internal/services"
)

// Services groups the use-case layer the HTTP API is built on.
type Services struct {
	Users    *services.UserService
	Projects *services.ProjectService
	Issues   *services.IssueService
	Comments *services.CommentService
}

// Mount registers every API route on r. Auth routes are public and pass
// through throttle; everything else requires a bearer access token.
func Mount(r chi.Router, svc Services, tokens *auth.TokenManager, throttle func(http.Handler) http.Handler, log logrus.FieldLogger) {
	authHandler := NewAuthHandler(svc.Users, tokens, log)
	projectHandler := NewProjectHandler(svc.Projects, log)
	issueHandler := NewIssueHandler(svc.Issues, log)
	commentHandler := NewCommentHandler(svc.Comments, log)
	userHandler := NewUserHandler(svc.Users, log)

	AuthRouter(r, authHandler, throttle)

	r.Group(func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		r.Route("/users", func(r chi.Router) {
			UserRouter(r, userHandler)
		})
		r.Route("/projects", func(r chi.Router) {
			ProjectRouter(r, projectHandler, func(r chi.Router) {
				IssueRouter(r, issueHandler, func(r chi.Router) {
					CommentRouter(r, commentHandler)
				})
			})
		})
	})
}
