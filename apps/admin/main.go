package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
	emailsvc "github.com/atomcode/atomq/services/email"
	logsvc "github.com/atomcode/atomq/services/logger"
	"github.com/atomcode/atomq/storage/database"
	sqlxrepos "github.com/atomcode/atomq/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	if len(os.Args) < 2 || os.Args[1] != "migrate" {
		if err = database.Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			logger.Fatal("migrating database", err)
		}
	}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:          db,
		usrSvc:      user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf, logger), conf),
		settingsSvc: settings.NewService(sqlxrepos.NewSettingsRepository(db), conf),
		validate:    validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
