package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	checklistevents "github.com/smokestack/smokestack-backend/internal/checklist/events"
	checklisthandler "github.com/smokestack/smokestack-backend/internal/checklist/handler"
	checklistrepo "github.com/smokestack/smokestack-backend/internal/checklist/repository"
	checklistservice "github.com/smokestack/smokestack-backend/internal/checklist/service"
	onboardinghandler "github.com/smokestack/smokestack-backend/internal/onboarding/handler"
	onboardingservice "github.com/smokestack/smokestack-backend/internal/onboarding/service"
	shifthandler "github.com/smokestack/smokestack-backend/internal/shift/handler"
	shiftrepo "github.com/smokestack/smokestack-backend/internal/shift/repository"
	shiftservice "github.com/smokestack/smokestack-backend/internal/shift/service"
	teamevents "github.com/smokestack/smokestack-backend/internal/team/events"
	teamhandler "github.com/smokestack/smokestack-backend/internal/team/handler"
	teamrepo "github.com/smokestack/smokestack-backend/internal/team/repository"
	teamservice "github.com/smokestack/smokestack-backend/internal/team/service"
	trainingevents "github.com/smokestack/smokestack-backend/internal/training/events"
	traininghandler "github.com/smokestack/smokestack-backend/internal/training/handler"
	trainingrepo "github.com/smokestack/smokestack-backend/internal/training/repository"
	trainingservice "github.com/smokestack/smokestack-backend/internal/training/service"
	"github.com/smokestack/smokestack-backend/migrations"
	"github.com/smokestack/smokestack-backend/pkg/config"
	"github.com/smokestack/smokestack-backend/pkg/database"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
)

func main() {
	cfg, err := config.Load("server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("server", cfg.Server.Environment)
	log.Info().Msg("starting Smokestack backend")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := migrations.Up(ctx, db.DB.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := messaging.NewPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Repositories
	storeRepo := teamrepo.NewStoreRepository(db)
	profileRepo := teamrepo.NewProfileRepository(db)
	invitationRepo := teamrepo.NewInvitationRepository(db)
	auditRepo := teamrepo.NewAuditLogRepository(db)
	qcashRepo := teamrepo.NewQcashRepository(db)
	checklistTemplateRepo := checklistrepo.NewTemplateRepository(db)
	checklistRepo := checklistrepo.NewChecklistRepository(db)
	shiftRepo := shiftrepo.NewShiftRepository(db)
	setupSheetRepo := shiftrepo.NewSetupSheetRepository(db)
	trainingTemplateRepo := trainingrepo.NewTemplateRepository(db)
	trainingInstanceRepo := trainingrepo.NewInstanceRepository(db)

	// Event publishers
	teamPublisher := teamevents.NewTeamEventPublisher(publisher, log)
	checklistPublisher := checklistevents.NewChecklistEventPublisher(publisher, log)
	trainingPublisher := trainingevents.NewTrainingEventPublisher(publisher, log)

	// Services
	profileService := teamservice.NewProfileService(profileRepo, auditRepo, teamPublisher, log)
	invitationService := teamservice.NewInvitationService(invitationRepo, profileRepo, storeRepo, teamPublisher, &cfg.Invites, log)
	qcashService := teamservice.NewQcashService(qcashRepo, profileRepo, log)
	checklistTemplateService := checklistservice.NewTemplateService(checklistTemplateRepo, log)
	checklistService := checklistservice.NewChecklistService(checklistRepo, checklistTemplateRepo, profileRepo, checklistPublisher, log)
	shiftService := shiftservice.NewShiftService(shiftRepo, profileRepo, log)
	setupSheetService := shiftservice.NewSetupSheetService(setupSheetRepo, profileRepo, log)
	trainingService := trainingservice.NewTrainingService(trainingTemplateRepo, trainingInstanceRepo, trainingPublisher, log)
	onboardingService := onboardingservice.NewOnboardingService(storeRepo, log)

	// Handlers
	profileHandler := teamhandler.NewProfileHandler(profileService, log)
	invitationHandler := teamhandler.NewInvitationHandler(invitationService, log)
	qcashHandler := teamhandler.NewQcashHandler(qcashService, log)
	checklistTemplateHandler := checklisthandler.NewTemplateHandler(checklistTemplateService, log)
	checklistHandler := checklisthandler.NewChecklistHandler(checklistService, log)
	shiftHandler := shifthandler.NewShiftHandler(shiftService, log)
	setupSheetHandler := shifthandler.NewSetupSheetHandler(setupSheetService, log)
	trainingHandler := traininghandler.NewTrainingHandler(trainingService, log)
	onboardingHandler := onboardinghandler.NewOnboardingHandler(onboardingService, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Server.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "server",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Public routes: kiosk PIN sign-in and invite acceptance run before
	// the caller has a store-scoped token.
	r.Post("/api/v1/auth/pin", profileHandler.PinSignIn)
	r.Post("/api/v1/invitations/accept", invitationHandler.Accept)

	// Store-scoped routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.Auth(&cfg.JWT))

		// Onboarding sits outside the access gate so a fresh store can
		// work through its setup steps.
		r.Route("/onboarding", func(r chi.Router) {
			r.Get("/", onboardingHandler.Status)
			r.Post("/store-setup", onboardingHandler.CompleteStoreSetup)
			r.Post("/employee-import", onboardingHandler.CompleteEmployeeImport)
		})

		// The bulk import itself happens during the employee import step,
		// so it cannot sit behind the access gate.
		r.Post("/staff/import", profileHandler.Import)

		r.Group(func(r chi.Router) {
			r.Use(onboardinghandler.AccessGate(onboardingService))

			r.Route("/staff", func(r chi.Router) {
				r.Get("/", profileHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", profileHandler.Get)
					r.Put("/", profileHandler.Update)
					r.Post("/deactivate", profileHandler.Deactivate)
					r.Post("/reactivate", profileHandler.Reactivate)
					r.Put("/pin", profileHandler.SetPin)
					r.Get("/training", trainingHandler.ListByProfile)
					r.Route("/qcash", func(r chi.Router) {
						r.Get("/", qcashHandler.Ledger)
						r.Get("/balance", qcashHandler.Balance)
						r.Post("/award", qcashHandler.Award)
						r.Post("/transfer", qcashHandler.Transfer)
					})
				})
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Post("/", invitationHandler.Create)
				r.Get("/", invitationHandler.List)
				r.Post("/{id}/revoke", invitationHandler.Revoke)
			})

			r.Get("/audit-log", profileHandler.AuditLog)

			r.Route("/checklist-templates", func(r chi.Router) {
				r.Post("/", checklistTemplateHandler.Create)
				r.Get("/", checklistTemplateHandler.List)
				r.Get("/{id}", checklistTemplateHandler.Get)
				r.Delete("/{id}", checklistTemplateHandler.Deactivate)
			})

			r.Route("/checklists", func(r chi.Router) {
				r.Post("/", checklistHandler.Generate)
				r.Get("/", checklistHandler.ListByDate)
				r.Get("/{id}", checklistHandler.Get)
				r.Put("/{id}/tasks/{taskID}/status", checklistHandler.Transition)
				r.Put("/{id}/tasks/{taskID}/assignee", checklistHandler.Assign)
				r.Delete("/{id}/tasks/{taskID}/assignee", checklistHandler.Unassign)
				r.Post("/{id}/tasks/{taskID}/comments", checklistHandler.AddComment)
				r.Get("/{id}/tasks/{taskID}/comments", checklistHandler.ListComments)
			})

			r.Route("/shifts", func(r chi.Router) {
				r.Post("/", shiftHandler.Create)
				r.Get("/", shiftHandler.ListByDate)
				r.Get("/{id}", shiftHandler.Get)
				r.Put("/{id}", shiftHandler.Update)
				r.Delete("/{id}", shiftHandler.Delete)
				r.Post("/{id}/roster", shiftHandler.AddToRoster)
				r.Put("/{id}/roster/{assignmentID}", shiftHandler.UpdateRosterEntry)
				r.Delete("/{id}/roster/{assignmentID}", shiftHandler.RemoveFromRoster)
			})

			r.Route("/setup-sheets", func(r chi.Router) {
				r.Post("/", setupSheetHandler.Create)
				r.Get("/", setupSheetHandler.ListByDate)
				r.Get("/{id}", setupSheetHandler.Get)
				r.Post("/{id}/positions", setupSheetHandler.AddPosition)
				r.Delete("/{id}/positions/{positionID}", setupSheetHandler.DeletePosition)
				r.Put("/{id}/positions/{positionID}/assignee", setupSheetHandler.AssignPosition)
				r.Delete("/{id}/positions/{positionID}/assignee", setupSheetHandler.UnassignPosition)
			})

			r.Route("/training-templates", func(r chi.Router) {
				r.Post("/", trainingHandler.CreateTemplate)
				r.Get("/", trainingHandler.ListTemplates)
				r.Get("/{id}", trainingHandler.GetTemplate)
				r.Delete("/{id}", trainingHandler.DeactivateTemplate)
			})

			r.Route("/training", func(r chi.Router) {
				r.Post("/", trainingHandler.Assign)
				r.Get("/{id}", trainingHandler.GetInstance)
				r.Post("/{id}/tasks/{taskID}/complete", trainingHandler.CompleteTask)
				r.Post("/{id}/request-approval", trainingHandler.RequestApproval)
				r.Post("/{id}/approve", trainingHandler.Approve)
			})
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
