package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	echoapi "github.com/atomcode/atomq/apps/api/echo"
	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/activity"
	"github.com/atomcode/atomq/core/auth"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/quiz"
	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
	emailsvc "github.com/atomcode/atomq/services/email"
	eventsvc "github.com/atomcode/atomq/services/events"
	logsvc "github.com/atomcode/atomq/services/logger"
	ratelimitsvc "github.com/atomcode/atomq/services/ratelimit"
	"github.com/atomcode/atomq/storage/database"
	sqlxrepos "github.com/atomcode/atomq/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// login attempts: shared in Redis when configured, in memory otherwise
	var attempts auth.AttemptStore = auth.NewMemoryStore()
	if conf.Redis.URL != "" {
		client, err := ratelimitsvc.NewRedisClient(ctx, conf.Redis.URL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = client.Close() }()
		attempts = ratelimitsvc.NewRedisStore(client)
	}

	// activity events
	var events core.EventPublisher = eventsvc.NewLogPublisher(logger)
	if len(conf.Kafka.Brokers) > 0 {
		kafkaPub := eventsvc.NewKafkaPublisher(conf.Kafka.Brokers, conf.Kafka.Topic, logger)
		defer func() {
			if err := kafkaPub.Close(); err != nil {
				logger.Error("closing kafka publisher", err)
			}
		}()
		events = kafkaPub
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	settingsSvc := settings.NewService(sqlxrepos.NewSettingsRepository(db), conf)
	limiter := auth.NewLimiter(attempts, auth.LimiterOptions{
		MaxAttempts: conf.Auth.MaxLoginAttempts,
		Window:      conf.Auth.AttemptWindow,
		Lockout:     conf.Auth.LockoutDuration,
	})
	authSvc := auth.NewService(usrSvc, settingsSvc, limiter, logger)
	questionSvc := question.NewService(sqlxrepos.NewQuestionRepository(db))
	activitySvc := activity.NewService(db, sqlxrepos.NewActivityRepository(db), questionSvc, events, logger)
	quizSvc := quiz.NewService(db, sqlxrepos.NewQuizRepository(db), questionSvc, usrSvc, mailSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	question.InitValidators(validate, translator)
	activity.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			Validate:    validate,
			Translator:  translator,
			Registry:    prometheus.NewRegistry(),
			UserSvc:     usrSvc,
			AuthSvc:     authSvc,
			SettingsSvc: settingsSvc,
			QuestionSvc: questionSvc,
			ActivitySvc: activitySvc,
			QuizSvc:     quizSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
