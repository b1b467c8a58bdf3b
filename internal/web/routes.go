package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	d := s.deps

	// Create handlers
	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens, s.logger)
	usersHandler := handlers.NewUsersHandler(d.Users, s.logger)
	employeesHandler := handlers.NewEmployeesHandler(d.Employees, s.logger)
	attendanceHandler := handlers.NewAttendanceHandler(d.Attendance, d.Employees, s.logger)
	dashboardHandler := handlers.NewDashboardHandler(d.Attendance, s.logger)
	exportHandler := handlers.NewExportHandler(d.Attendance, s.logger)
	faceHandler := handlers.NewFaceHandler(d.Recognizer, d.Employees, d.VerifyThreshold, s.logger)
	liveHandler := handlers.NewLiveHandler(d.Live, d.Tokens, d.LiveRequireAuth, s.logger)
	eventsHandler := handlers.NewEventsHandler(d.Events)
	healthHandler := handlers.NewHealthHandler(d.Health, d.Live)

	timeout := chiMiddleware.Timeout(restTimeout)

	s.router.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", healthHandler.Health)
		r.Get("/ws/attendance", liveHandler.Attendance)
		r.With(timeout).Post("/auth/login", authHandler.Login)
		r.With(timeout).Post("/auth/signup", authHandler.Signup)

		// Everything else requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(middleware.Verifier(d.Tokens))
			r.Use(middleware.RequireAuth(d.Tokens, s.logger))

			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Post("/auth/logout", authHandler.Logout)
				r.Get("/auth/me", authHandler.Me)

				// Recognition service proxy
				r.Post("/ml/verify", faceHandler.Verify)
				r.Post("/ml/enroll", faceHandler.Enroll)
			})

			// Administration
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(database.RoleAdmin))

				// Long-lived streams
				r.Get("/admin/attendance/events", eventsHandler.Stream)

				r.Group(func(r chi.Router) {
					r.Use(timeout)

					// Employees
					r.Get("/admin/employee/all", employeesHandler.List)
					r.Post("/admin/employee", employeesHandler.Create)
					r.Get("/admin/employee/{id}", employeesHandler.Get)
					r.Put("/admin/employee/{id}", employeesHandler.Update)
					r.Delete("/admin/employee/{id}", employeesHandler.Delete)

					// Attendance
					r.Get("/admin/attendance", attendanceHandler.List)
					r.Post("/admin/attendance", attendanceHandler.Create)
					r.Get("/admin/attendance/export", exportHandler.Export)
					r.Get("/admin/attendance/employees/{id}", attendanceHandler.ListByEmployee)
					r.Post("/admin/attendance/mark/{employeeId}", attendanceHandler.Mark)
					r.Get("/admin/attendance/{id}", attendanceHandler.Get)
					r.Put("/admin/attendance/{id}", attendanceHandler.Update)
					r.Delete("/admin/attendance/{id}", attendanceHandler.Delete)

					// Dashboard
					r.Get("/admin/dashboard/summaryGroups", dashboardHandler.SummaryGroups)
					r.Get("/admin/dashboard/statusCards", dashboardHandler.StatusCards)

					// Users
					r.Get("/users/all", usersHandler.List)
					r.Post("/users", usersHandler.Create)
					r.Get("/users/{id}", usersHandler.Get)
					r.Put("/users/{id}", usersHandler.Update)
					r.Delete("/users/{id}", usersHandler.Delete)

					// Live gateway
					r.Get("/live/stats", liveHandler.Stats)
				})
			})
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
}
