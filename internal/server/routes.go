package server

import "github.com/go-chi/chi/v5"

func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/fork", s.forkSession)
			r.Post("/activate", s.activateSession)

			r.Post("/message", s.sendMessage)
			r.Get("/result", s.getResult)
			r.Post("/interrupt", s.interruptSession)
			r.Post("/mode", s.setMode)

			r.Get("/checkpoint", s.listCheckpoints)
			r.Post("/checkpoint/{checkpointID}/restore", s.restoreCheckpoint)
		})
	})

	r.Post("/permission/{permissionID}", s.respondPermission)
	r.Post("/question/{toolUseID}", s.respondQuestions)
	r.Get("/agent", s.listAgents)
	r.Get("/event", s.events)
}
