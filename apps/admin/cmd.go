package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/treatment"
	"github.com/trezcool/spadesk/core/user"
	"github.com/trezcool/spadesk/storage/database/sqlxrepos"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	logger    core.Logger
	validate  *validator.Validate
	usrRepo   user.Repository
	clientSvc client.Service
	accessSvc access.Service
	trtSvc    treatment.Service
}

func newCommandLine(db *sqlx.DB, logger core.Logger) *commandLine {
	var translator ut.Translator = core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	access.InitValidators(validate, translator)
	treatment.InitValidators(validate, translator)

	return &commandLine{
		db:        db,
		logger:    logger,
		validate:  validate,
		usrRepo:   sqlxrepos.NewUserRepository(db),
		clientSvc: client.NewService(sqlxrepos.NewClientRepository(db)),
		accessSvc: access.NewService(sqlxrepos.NewRoleRepository(db)),
		trtSvc:    treatment.NewService(sqlxrepos.NewTreatmentRepository(db)),
	}
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] - create or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  seed [-file CATALOG.yaml] [-clients N] - load the service catalog and roles, optionally demo clients")
}

// promptPassword reads a password without echoing it.
func promptPassword(label string) (string, error) {
	fmt.Print(label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedFile := seedCmd.String("file", "", "A catalog file; the built-in catalog is used when empty.")
	seedClients := seedCmd.Int("clients", 0, "Number of random demo clients to create.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedClients < 0 {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(*seedFile, *seedClients)

	default:
		cli.printUsage()
		return errHelp
	}
}
