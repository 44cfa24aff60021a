package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"

	"festreg/cmd/buildCFG"
	"festreg/internal/dto"
	"festreg/internal/service"
	"festreg/pkg/validator"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator account management",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Example: `  festreg admin create --name "Desk One" --email desk@fest.example \
    --phone +911234567890 --password 'change-me-now'`,
	RunE: runAdminCreate,
}

func init() {
	f := adminCreateCmd.Flags()
	f.String("name", "", "Full name")
	f.String("email", "", "E-mail (login)")
	f.String("phone", "", "Phone number")
	f.String("college", "", "College or organisation")
	f.String("password", "", "Password, at least 8 characters")
	for _, name := range []string{"name", "email", "phone", "password"} {
		if err := adminCreateCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	adminCmd.AddCommand(adminCreateCmd)
}

func runAdminCreate(cmd *cobra.Command, _ []string) error {
	log := zlog.Logger
	f := cmd.Flags()
	req := dto.SignupRequest{}
	req.Name, _ = f.GetString("name")
	req.Email, _ = f.GetString("email")
	req.Phone, _ = f.GetString("phone")
	req.College, _ = f.GetString("college")
	req.Password, _ = f.GetString("password")

	if err := validator.Validate(cmd.Context(), req); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	repository, driver, closeRepo, err := openRepository(cfg, &log)
	if err != nil {
		return err
	}
	defer closeRepo()
	if driver == buildCFG.DriverMemory {
		return fmt.Errorf("admin accounts need persistent storage, storage.driver is %q", driver)
	}

	svc := service.NewService(repository, &log, nil, buildCFG.BuildServiceOptions(cfg))
	user, err := svc.CreateAdmin(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s), code %s\n", user.Email, user.ID, user.Code)
	return nil
}
