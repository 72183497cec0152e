package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geocoder89/coursehub/internal/client"
	"github.com/geocoder89/coursehub/internal/validation"
)

var apiURL string

// report prints the single notice a submission leaves behind.
func report(cmd *cobra.Command, c *client.Client, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", c.Form().Message())
		return apiErr
	}
	return err
}

func baseURL() string {
	if apiURL != "" {
		return apiURL
	}
	return cfg.APIBaseURL
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account through the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in validation.SignUpInput
		in.FirstName, _ = cmd.Flags().GetString("first")
		in.LastName, _ = cmd.Flags().GetString("last")
		in.Email, _ = cmd.Flags().GetString("email")
		in.Password, _ = cmd.Flags().GetString("password")

		c := client.New(baseURL())
		u, err := c.SignUp(cmd.Context(), in)
		if err != nil {
			return report(cmd, c, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.ID, u.Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in validation.LoginInput
		in.Email, _ = cmd.Flags().GetString("email")
		in.Password, _ = cmd.Flags().GetString("password")

		c := client.New(baseURL())
		sess, err := c.Login(cmd.Context(), in)
		if err != nil {
			return report(cmd, c, err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), sess.Token)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (defaults to API_BASE_URL)")

	signupCmd.Flags().String("first", "", "first name")
	signupCmd.Flags().String("last", "", "last name")
	signupCmd.Flags().String("email", "", "email address")
	signupCmd.Flags().String("password", "", "password (at least 6 characters)")
	_ = signupCmd.MarkFlagRequired("email")
	_ = signupCmd.MarkFlagRequired("password")

	loginCmd.Flags().String("email", "", "email address")
	loginCmd.Flags().String("password", "", "password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(signupCmd, loginCmd)
}
