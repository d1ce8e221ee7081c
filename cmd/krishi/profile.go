package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/profile"
)

var (
	regUser krishi.User
	upd     struct {
		name, language, state, district, village string
		landArea                                 float64
	}
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change the farmer profile on this device",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newProfileService()
		if err != nil {
			return err
		}
		defer svc.Close()

		u, err := svc.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		if u == nil {
			fmt.Println("no profile; run `krishi profile register`")
			return nil
		}
		return printJSON(u)
	},
}

var profileRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a farmer and sign in on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newProfileService()
		if err != nil {
			return err
		}
		defer svc.Close()

		u, err := svc.Register(cmd.Context(), regUser)
		if err != nil {
			return err
		}
		return printJSON(u)
	},
}

var profileSignInCmd = &cobra.Command{
	Use:   "signin <phone>",
	Short: "Sign in as an already registered farmer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newProfileService()
		if err != nil {
			return err
		}
		defer svc.Close()

		u, err := svc.SignIn(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(u)
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change profile fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newProfileService()
		if err != nil {
			return err
		}
		defer svc.Close()

		var ch profile.Changes
		flags := cmd.Flags()
		if flags.Changed("name") {
			ch.Name = &upd.name
		}
		if flags.Changed("language") {
			ch.Language = &upd.language
		}
		if flags.Changed("state") {
			ch.State = &upd.state
		}
		if flags.Changed("district") {
			ch.District = &upd.district
		}
		if flags.Changed("village") {
			ch.Village = &upd.village
		}
		if flags.Changed("land-area") {
			ch.LandArea = &upd.landArea
		}
		if ch.Empty() {
			return fmt.Errorf("nothing to update")
		}

		u, err := svc.Update(cmd.Context(), ch)
		if err != nil {
			return err
		}
		return printJSON(u)
	},
}

var profileSignOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget the profile on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newProfileService()
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.SignOut()
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the registered farmer and forget it on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newProfileService()
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.Delete(cmd.Context())
	},
}

func init() {
	rf := profileRegisterCmd.Flags()
	rf.StringVar(&regUser.PhoneNumber, "phone", "", "phone number")
	rf.StringVar(&regUser.Name, "name", "", "display name")
	rf.StringVar(&regUser.Language, "language", krishi.DefaultLanguage, "preferred language")
	rf.StringVar(&regUser.State, "state", "", "state")
	rf.StringVar(&regUser.District, "district", "", "district")
	rf.StringVar(&regUser.Village, "village", "", "village")
	rf.Float64Var(&regUser.LandArea, "land-area", 0, "land area in acres")
	_ = profileRegisterCmd.MarkFlagRequired("phone")
	_ = profileRegisterCmd.MarkFlagRequired("name")

	uf := profileUpdateCmd.Flags()
	uf.StringVar(&upd.name, "name", "", "display name")
	uf.StringVar(&upd.language, "language", "", "preferred language")
	uf.StringVar(&upd.state, "state", "", "state")
	uf.StringVar(&upd.district, "district", "", "district")
	uf.StringVar(&upd.village, "village", "", "village")
	uf.Float64Var(&upd.landArea, "land-area", 0, "land area in acres")

	profileCmd.AddCommand(profileShowCmd, profileRegisterCmd, profileSignInCmd, profileUpdateCmd, profileSignOutCmd, profileDeleteCmd)
}
