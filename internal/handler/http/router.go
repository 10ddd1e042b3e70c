package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	// FilesPath is the local storage root served under /files for archived exports.
	FilesPath string
}

func NewRouter(
	opts RouterOptions,
	JWTService jwt.Service,
	payrollHandler PayrollHandler,
	compensationHandler CompensationHandler,
	auditHandler AuditHandler,
	runEventsHandler RunEventsHandler,
) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/phase0", func(r chi.Router) {
				r.With(middleware.RequirePermission(user.PermissionPhase0View)).Get("/status", compensationHandler.Phase0Status)
				r.With(middleware.RequirePermission(user.PermissionPhase0View)).Get("/pending", compensationHandler.ListPending)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPhase0Decide))
					r.Post("/{kind}/{id}/decision", compensationHandler.Decide)
					r.Put("/{kind}/{id}/amount", compensationHandler.EditAmount)
				})
			})

			r.Route("/runs", func(r chi.Router) {
				r.With(middleware.RequirePermission(user.PermissionRunPrepare)).Post("/", payrollHandler.Initiate)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionRunView))
					r.Get("/", payrollHandler.ListRuns)
					r.Get("/current", payrollHandler.CurrentRun)
					r.Get("/events", runEventsHandler.Stream)
				})

				r.Route("/{id}", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionRunView)).Get("/", payrollHandler.GetRun)
					r.With(middleware.RequirePermission(user.PermissionRunView)).Get("/payslips", payrollHandler.ListPayslips)

					// Specialist
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionRunPrepare))
						r.Post("/calculate", payrollHandler.Calculate)
						r.Post("/submit", payrollHandler.Submit)
					})

					// Manager
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionRunReview))
						r.Post("/manager/approve", payrollHandler.ManagerApprove)
						r.Post("/manager/reject", payrollHandler.ManagerReject)
					})
					r.With(middleware.RequirePermission(user.PermissionRunUnfreeze)).Post("/unfreeze", payrollHandler.Unfreeze)

					// Finance
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionRunFinance))
						r.Post("/finance/approve", payrollHandler.FinanceApprove)
						r.Post("/finance/reject", payrollHandler.FinanceReject)
					})
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionRunExecute))
						r.Post("/execute", payrollHandler.Execute)
						r.Post("/reconcile", payrollHandler.Reconcile)
					})

					r.With(middleware.RequirePermission(user.PermissionAnomalyReview)).Get("/anomalies", payrollHandler.ListAnomalies)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionReportsView))
						r.Get("/reports/summary", payrollHandler.SummaryReport)
						r.Get("/reports/tax", payrollHandler.TaxReport)
					})

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionExport))
						r.Get("/export", payrollHandler.ExportBankTransfer)
						r.Post("/export/archive", payrollHandler.ArchiveBankTransfer)
					})
				})
			})

			r.Route("/payslips/{id}", func(r chi.Router) {
				r.With(middleware.RequirePermission(user.PermissionRunView)).Get("/", payrollHandler.GetPayslip)
				r.With(middleware.RequirePermission(user.PermissionPayslipEdit)).Patch("/", payrollHandler.EditPayslip)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionAnomalyReview))
					r.Post("/anomaly-resolution", payrollHandler.ResolveAnomaly)
					r.Delete("/anomaly-resolution", payrollHandler.UnresolveAnomaly)
				})
			})

			r.With(middleware.RequirePermission(user.PermissionAuditView)).Get("/audit-logs", auditHandler.List)
		})
	})

	if opts.FilesPath != "" {
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.RequirePermission(user.PermissionExport))
			r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FilesPath))))
		})
	}

	return r
}
