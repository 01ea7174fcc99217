package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/chzyer/readline"
	"github.com/knadh/koanf"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/sanity-io/litter"
	"github.com/sirupsen/logrus"
	"github.com/ticketboard/ticketboard/internal/attachment"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/logger"
	"github.com/ticketboard/ticketboard/internal/notification"
	"github.com/ticketboard/ticketboard/internal/server"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/internal/server/session"
	"github.com/ticketboard/ticketboard/internal/sso"
	"github.com/ticketboard/ticketboard/pkg/msgraph"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string

	// useradd flags
	name  string
	email string
	admin bool

	// diagnose-mail flags
	to string
)

func main() {
	c := &coral.Command{
		Use:     "ticketboard",
		Short:   "Multi-tenant kanban and ticket board",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	c.PersistentFlags().StringVarP(&cfg, "config", "c", "", "Configuration file")

	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(migrateCmd)
	c.AddCommand(serverCmd)

	useraddCmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	useraddCmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	useraddCmd.Flags().BoolVar(&admin, "admin", false, "Grant administrator rights")
	c.AddCommand(useraddCmd)

	diagnoseMailCmd.Flags().StringVar(&to, "to", "", "Send a test email to this address")
	c.AddCommand(diagnoseMailCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func open(konf *koanf.Koanf) (database.Client, error) {
	db, err := database.Open(konf.String("database.driver"), konf.String("database.path"), konf.String("database.codec"))
	return db, errors.Wrap(err, "could not open database")
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load(cfg)
			if err != nil {
				return err
			}

			path := konf.String("database.path")
			switch konf.String("database.driver") {
			case database.DriverSQLite:
				err = database.SQLiteMigrate(path)
			default:
				err = database.StormInit(path, konf.String("database.codec"))
			}
			if err != nil {
				return err
			}
			fmt.Println("Database initialized:", path)

			if konf.String("session.secret") == "" {
				fmt.Println("No session secret configured, you can use this one:")
				fmt.Println("  session:")
				fmt.Println("    secret:", session.SecureToken(48))
			}
			return nil
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load(cfg)
			if err != nil {
				return err
			}

			if konf.String("database.driver") == database.DriverSQLite {
				return errors.New("reindex is only available for storm databases")
			}
			return database.StormReIndex(konf.String("database.path"), konf.String("database.codec"))
		},
	}

	//
	migrateCmd = &coral.Command{
		Use:   "migrate",
		Short: "Apply the pending SQLite migrations",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load(cfg)
			if err != nil {
				return err
			}

			if konf.String("database.driver") != database.DriverSQLite {
				return errors.New("migrate is only available for sqlite databases")
			}
			return database.SQLiteMigrate(konf.String("database.path"))
		},
	}

	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start server",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load(cfg)
			if err != nil {
				return err
			}

			if konf.String("session.secret") == "" {
				return errors.New("session secret not found")
			}

			l, err := logger.New(loggerConfig(konf))
			if err != nil {
				return err
			}

			db, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			ctrl := server.IOC{
				Version:       version,
				Database:      db,
				SessionSecret: kdf(32, konf.MustBytes("session.secret")),
				SessionTTL:    konf.MustDuration("session.ttl"),
				Logger:        l,
			}

			if path := konf.String("storage_path"); path != "" {
				ctrl.Store, err = attachment.NewOnDisk(path)
				if err != nil {
					return err
				}
			} else {
				l.Warn("storage_path not configured, attachments are disabled")
			}

			notifications := notification.Config{
				Users:   db,
				BaseURL: konf.String("base_url"),
				Timeout: duration(konf, "mail.timeout", notification.DefaultTimeout),
				Logger:  l,
			}

			graph := graphConfig(konf)
			if graph.Configured() {
				client := msgraph.New(graph)
				ctrl.Photos = client
				if graph.Sender != "" {
					notifications.Mailer = client
				}
			}
			if notifications.Mailer == nil {
				l.Warn("mail not configured, notifications are disabled")
			}
			ctrl.Notifier = notification.New(notifications)
			defer ctrl.Notifier.Wait()

			if c := ssoConfig(konf); c.Configured() {
				ctrl.SSO = sso.NewMicrosoft(c)
			}

			engine := server.EchoEngine(ctrl)
			server.PrintRoutes(engine)

			address := konf.String("address")
			message := "could not run server"
			l.WithField("address", address).Info("server listening")
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					l.Infof("removing existing %s", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}

	//
	useraddCmd = &coral.Command{
		Use:   "useradd",
		Short: "Create a user signing in with a password",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load(cfg)
			if err != nil {
				return err
			}

			rl, err := readline.New("")
			if err != nil {
				return errors.Wrap(err, "could not open terminal")
			}
			defer rl.Close()

			if name == "" {
				rl.SetPrompt("Name: ")
				if name, err = rl.Readline(); err != nil {
					return errors.Wrap(err, "could not read name")
				}
			}
			if email == "" {
				rl.SetPrompt("Email: ")
				if email, err = rl.Readline(); err != nil {
					return errors.Wrap(err, "could not read email")
				}
			}

			password, err := rl.ReadPassword("Password: ")
			if err != nil {
				return errors.Wrap(err, "could not read password")
			}
			confirmation, err := rl.ReadPassword("Confirm password: ")
			if err != nil {
				return errors.Wrap(err, "could not read password")
			}
			if string(password) != string(confirmation) {
				return errors.New("passwords do not match")
			}

			db, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := service.NewUser(db, nil).Create(service.CreateUserParams{
				Name:     strings.TrimSpace(name),
				Email:    email,
				Password: string(password),
				Admin:    admin,
			})
			if err != nil {
				return err
			}

			fmt.Println("User created:", user.ID, user.Email)
			return nil
		},
	}

	//
	diagnoseMailCmd = &coral.Command{
		Use:   "diagnose-mail",
		Short: "Check the Microsoft Graph mail settings",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load(cfg)
			if err != nil {
				return err
			}

			graph := graphConfig(konf)
			dump := litter.Options{
				HidePrivateFields: true,
				FieldExclusions:   regexp.MustCompile(`^ClientSecret$`),
			}
			fmt.Println(dump.Sdump(graph))
			fmt.Println("Client secret set:", graph.ClientSecret != "")

			if !graph.Configured() {
				return errors.New("microsoft.client_id and microsoft.client_secret are required")
			}
			if graph.Sender == "" {
				return errors.New("mail.sender is required")
			}

			client := msgraph.New(graph)

			token, err := client.Token()
			if err != nil {
				return errors.Wrap(err, "could not get an application token")
			}
			fmt.Println("Token: OK, expires at", token.Expiry.Format("2006-01-02 15:04:05"))

			ctx := context.Background()
			id, err := client.SenderID(ctx)
			if err != nil {
				return errors.Wrap(err, "could not resolve the sender")
			}
			fmt.Println("Sender:", client.Sender(), "("+id+")")

			if to == "" {
				return nil
			}

			err = client.SendMail(ctx, to, "Ticketboard test email", "<p>Mail delivery is working.</p>")
			if err != nil {
				logrus.WithError(err).WithField("to", to).Error("test email failed")
				return errors.Wrap(err, "could not send the test email")
			}
			fmt.Println("Test email sent to", to)
			return nil
		},
	}
)
