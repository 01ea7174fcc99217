package main

import (
	"fmt"
	"log"

	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/database"
)

var (
	driver string
	codec  string
)

func main() {
	c := &coral.Command{
		Use:   "rmuser DATABASE EMAIL",
		Short: "Remove a user from the database",
		Args:  coral.ExactArgs(2),
		RunE: func(_ *coral.Command, args []string) error {
			fmt.Println("Opening", args[0])
			db, err := database.Open(driver, args[0], codec)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			user, err := db.FindUserByMail(args[1])
			if err != nil {
				if db.IsNotFound(err) {
					fmt.Println("No account for this email")
					return nil
				}
				return err
			}

			fmt.Println("User found:", user.ID, user.Name)

			// Sessions, memberships and filters go with the user, its items become unassigned.
			if err = db.RemoveUser(user.ID); err != nil {
				return errors.Wrap(err, "delete user")
			}
			fmt.Println("User removed")

			return nil
		},
	}
	c.Flags().StringVar(&driver, "driver", database.DriverStorm, "Database driver (storm or sqlite)")
	c.Flags().StringVar(&codec, "codec", "msgpack", "Storm codec (msgpack or cbor)")

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}
