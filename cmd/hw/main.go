package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"homeward/internal/app"
	"homeward/internal/config"
	"homeward/internal/db"
	"homeward/internal/domain"
	"homeward/internal/engine"
	"homeward/internal/repo"
	"homeward/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hw",
	Short: "Homeward CLI",
	Long: `Homeward runs a pet rehoming marketplace from the command line.
How the pieces fit:
- Workspace: your .homeward directory holding the database; homeward.yml tunes cooling-off windows, listing rules, and webhooks.
- Intervention: before an owner can list a pet they go through a short intervention; non-urgent cases get a cooling-off window to reconsider.
- Request: the owner's formal intent to rehome one pet. Confirmed requests become listings.
- Listing: the public profile (story, medical, behavioral, photos, fee). New listings pass automated moderation checks before going active.
- Application: an adopter applies against a listing with a readiness score snapshot, then moves through meet & greet, home check, and trial steps.
- Finalize: one winning application is adopted; siblings are rejected, the listing is rehomed, and a contract plus escrow payment are created.
- Event log: diary of everything that happened, view with 'hw log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HOMEWARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(petCmd())
	rootCmd.AddCommand(interventionCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(listingCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(meetGreetCmd())
	rootCmd.AddCommand(homeCheckCmd())
	rootCmd.AddCommand(contractCmd())
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, _, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(name)), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", cfgPath)
			}
			fmt.Printf("Workspace ready at %s (database %s)\n", workspace, db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "homeward", "marketplace name")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userShowCmd())
	user.AddCommand(userVerifyCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var opts engine.UserCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "user id (optional)")
	cmd.Flags().StringVar(&opts.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().BoolVar(&opts.EmailVerified, "email-verified", false, "mark email verified")
	cmd.Flags().BoolVar(&opts.PhoneVerified, "phone-verified", false, "mark phone verified")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Repo.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func userVerifyCmd() *cobra.Command {
	var email, phone bool
	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Set verification flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.SetUserVerification(ctx, args[0], email, phone); err != nil {
					return err
				}
				u, err := e.Repo.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().BoolVar(&email, "email", false, "email verified")
	cmd.Flags().BoolVar(&phone, "phone", false, "phone verified")
	return cmd
}

func petCmd() *cobra.Command {
	pet := &cobra.Command{Use: "pet", Short: "Manage pets"}
	pet.AddCommand(petCreateCmd())
	pet.AddCommand(petListCmd())
	pet.AddCommand(petShowCmd())
	return pet
}

func petCreateCmd() *cobra.Command {
	var opts engine.PetCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a pet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreatePet(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner user id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "pet name")
	cmd.Flags().StringVar(&opts.Species, "species", "", "species (dog, cat, ...)")
	cmd.Flags().StringVar(&opts.Breed, "breed", "", "breed")
	cmd.Flags().IntVar(&opts.AgeYears, "age", 0, "age in years")
	cmd.Flags().StringVar(&opts.Gender, "gender", "", "gender")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("species")
	return cmd
}

func petListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pets for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pets, err := e.Repo.ListPets(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(pets)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Species", "Breed", "Status"})
				for _, p := range pets {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Species, p.Breed, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner user id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func petShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a pet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetPet(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func interventionCmd() *cobra.Command {
	iv := &cobra.Command{
		Use:   "intervention",
		Short: "Rehoming interventions",
		Long:  "Owners go through an intervention before listing. Acknowledging a non-immediate intervention starts the cooling-off window.",
	}
	iv.AddCommand(interventionStartCmd())
	iv.AddCommand(interventionAckCmd())
	iv.AddCommand(interventionShowCmd())
	return iv
}

func interventionStartCmd() *cobra.Command {
	var owner, category, text, urgency string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an intervention",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				iv, err := e.StartIntervention(ctx, owner, category, text, urgency, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(iv)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner user id")
	cmd.Flags().StringVar(&category, "reason", "", "reason category (moving, allergies, ...)")
	cmd.Flags().StringVar(&text, "reason-text", "", "free-form reason")
	cmd.Flags().StringVar(&urgency, "urgency", "flexible", "urgency (immediate, soon, flexible)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func interventionAckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ack <id>",
		Short: "Acknowledge an intervention",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				iv, err := e.AcknowledgeIntervention(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(iv)
			})
		},
	}
	return cmd
}

func interventionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an intervention",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				iv, err := e.Repo.GetIntervention(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(iv)
			})
		},
	}
	return cmd
}

func requestCmd() *cobra.Command {
	req := &cobra.Command{
		Use:   "request",
		Short: "Rehoming requests",
		Long:  "A request records the intent to rehome one pet. Immediate requests stay draft until confirmed; others wait out a cooling period first.",
	}
	req.AddCommand(requestCreateCmd())
	req.AddCommand(requestConfirmCmd())
	req.AddCommand(requestCancelCmd())
	req.AddCommand(requestListCmd())
	req.AddCommand(requestShowCmd())
	return req
}

func requestCreateCmd() *cobra.Command {
	var opts engine.RequestCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a rehoming request",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.CreateRequest(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(req)
			})
		},
	}
	cmd.Flags().StringVar(&opts.PetID, "pet", "", "pet id")
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner user id")
	cmd.Flags().StringVar(&opts.Urgency, "urgency", "flexible", "urgency (immediate, soon, flexible)")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason")
	cmd.Flags().StringVar(&opts.IdealHome, "ideal-home", "", "ideal home description")
	cmd.Flags().BoolVar(&opts.TermsAccepted, "accept-terms", false, "accept marketplace terms")
	cmd.Flags().StringVar(&opts.LocationCity, "city", "", "city")
	cmd.Flags().StringVar(&opts.LocationState, "state", "", "state")
	cmd.Flags().StringVar(&opts.LocationZip, "zip", "", "zip code")
	cmd.Flags().StringVar(&opts.PrivacyLevel, "privacy", "", "privacy level")
	_ = cmd.MarkFlagRequired("pet")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func requestConfirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.ConfirmRequest(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(req)
			})
		},
	}
	return cmd
}

func requestCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.CancelRequest(ctx, args[0], reason, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(req)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func requestListCmd() *cobra.Command {
	var f repo.RequestFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListRequests(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Pet", "Owner", "Urgency", "Status"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.PetID, r.OwnerID, r.Urgency, r.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter")
	cmd.Flags().StringVar(&f.PetID, "pet", "", "pet filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func requestShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.Repo.GetRequest(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(req)
			})
		},
	}
	return cmd
}

func listingCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "listing",
		Short: "Rehoming listings",
		Long:  "Listings are the public pet profiles. They start pending_review, pass automated moderation, and go active after an approval decision.",
	}
	l.AddCommand(listingCreateCmd())
	l.AddCommand(listingListCmd())
	l.AddCommand(listingShowCmd())
	l.AddCommand(listingModerateCmd())
	l.AddCommand(listingDecideCmd())
	l.AddCommand(listingStatusCmd())
	return l
}

func listingCreateCmd() *cobra.Command {
	var opts engine.ListingCreateOptions
	var photos []string
	var conditions []string
	var aggression, goodChildren, goodDogs, goodCats bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a listing from a confirmed request",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.Photos = photos
			opts.Medical.Conditions = conditions
			if cmd.Flags().Changed("aggression-disclosed") {
				opts.AggressionDisclosed = &aggression
			}
			if cmd.Flags().Changed("good-with-children") {
				opts.Behavioral.GoodWithChildren = &goodChildren
			}
			if cmd.Flags().Changed("good-with-dogs") {
				opts.Behavioral.GoodWithDogs = &goodDogs
			}
			if cmd.Flags().Changed("good-with-cats") {
				opts.Behavioral.GoodWithCats = &goodCats
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CreateListing(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&opts.RequestID, "request", "", "confirmed request id")
	cmd.Flags().StringVar(&opts.RehomingStory, "story", "", "rehoming story")
	cmd.Flags().IntVar(&opts.AdoptionFee, "fee", 0, "adoption fee")
	cmd.Flags().StringArrayVar(&photos, "photo", []string{}, "photo reference (repeatable)")
	cmd.Flags().BoolVar(&opts.Medical.Vaccinated, "vaccinated", false, "pet is vaccinated")
	cmd.Flags().StringVar(&opts.Medical.VaccinationRecordRef, "vaccination-record", "", "vaccination record reference")
	cmd.Flags().BoolVar(&opts.Medical.SpayedNeutered, "spayed-neutered", false, "pet is spayed/neutered")
	cmd.Flags().BoolVar(&opts.Medical.Microchipped, "microchipped", false, "pet is microchipped")
	cmd.Flags().StringArrayVar(&conditions, "condition", []string{}, "medical condition (repeatable)")
	cmd.Flags().StringVar(&opts.Medical.Notes, "medical-notes", "", "medical notes")
	cmd.Flags().BoolVar(&goodChildren, "good-with-children", false, "good with children")
	cmd.Flags().BoolVar(&goodDogs, "good-with-dogs", false, "good with dogs")
	cmd.Flags().BoolVar(&goodCats, "good-with-cats", false, "good with cats")
	cmd.Flags().BoolVar(&opts.Behavioral.HouseTrained, "house-trained", false, "house trained")
	cmd.Flags().StringVar(&opts.Behavioral.EnergyLevel, "energy-level", "", "energy level (low, medium, high)")
	cmd.Flags().StringVar(&opts.Behavioral.Notes, "behavioral-notes", "", "behavioral notes")
	cmd.Flags().BoolVar(&aggression, "aggression-disclosed", false, "aggression history disclosed")
	_ = cmd.MarkFlagRequired("request")
	_ = cmd.MarkFlagRequired("story")
	return cmd
}

func listingListCmd() *cobra.Command {
	var f repo.ListingFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListListings(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Pet", "Species", "Fee", "Status", "Views"})
				for _, l := range items {
					tw.AppendRow(table.Row{l.ID, l.PetName, l.Species, l.AdoptionFee, l.Status, l.ViewCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Species, "species", "", "species filter")
	cmd.Flags().IntVar(&f.MaxFee, "max-fee", 0, "maximum adoption fee")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func listingShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.Repo.GetListing(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	return cmd
}

func listingModerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "moderate <id>",
		Short: "Rerun automated moderation checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rev, err := e.RunModeration(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rev)
			})
		},
	}
	return cmd
}

func listingDecideCmd() *cobra.Command {
	var decision string
	cmd := &cobra.Command{
		Use:   "decide <id>",
		Short: "Apply a moderation decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.DecideListing(ctx, args[0], decision, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "approved or rejected")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func listingStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Pause, resume, flag, or close a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.UpdateListingStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target status (active, paused, under_review, closed)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func profileCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "profile",
		Short: "Adopter profiles",
		Long:  "Profiles carry the household details that feed the readiness score. Applications snapshot the score at submission time.",
	}
	p.AddCommand(profileSetCmd())
	p.AddCommand(profileShowCmd())
	return p
}

func profileSetCmd() *cobra.Command {
	var opts engine.ProfileUpsertOptions
	cmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Create or update an adopter profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.UserID = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpsertAdopterProfile(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.HousingType, "housing", "", "housing type (house_with_yard, house, apartment, other)")
	cmd.Flags().IntVar(&opts.AdultsCount, "adults", 0, "adults in household")
	cmd.Flags().IntVar(&opts.ChildrenCount, "children", 0, "children in household")
	cmd.Flags().BoolVar(&opts.ChildrenCompatible, "children-compatible", false, "children are pet-compatible")
	cmd.Flags().IntVar(&opts.OtherPetsCount, "other-pets", 0, "other pets in household")
	cmd.Flags().BoolVar(&opts.OtherPetsCompatible, "other-pets-compatible", false, "other pets are compatible")
	cmd.Flags().IntVar(&opts.ExperienceYears, "experience", 0, "years of pet experience")
	cmd.Flags().IntVar(&opts.DailyExerciseMinutes, "exercise", 0, "daily exercise minutes")
	cmd.Flags().IntVar(&opts.ReferencesCount, "references", 0, "reference count")
	cmd.Flags().StringVar(&opts.Motivation, "motivation", "", "motivation statement")
	return cmd
}

func profileShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show an adopter profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func applicationCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "app",
		Short: "Adoption applications",
		Long:  "Applications move pending_review -> meet & greet -> home check -> trial -> adopted. The listing owner drives transitions; applicants may withdraw.",
	}
	a.AddCommand(appSubmitCmd())
	a.AddCommand(appListCmd())
	a.AddCommand(appShowCmd())
	a.AddCommand(appAdvanceCmd())
	a.AddCommand(appWithdrawCmd())
	a.AddCommand(appNoteCmd())
	a.AddCommand(appFinalizeCmd())
	return a
}

func appSubmitCmd() *cobra.Command {
	var listing, message string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.SubmitApplication(ctx, engine.ApplicationSubmitOptions{
					ListingID:   listing,
					ApplicantID: viper.GetString("actor-id"),
					Message:     message,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&listing, "listing", "", "listing id")
	cmd.Flags().StringVar(&message, "message", "", "message to the owner")
	_ = cmd.MarkFlagRequired("listing")
	return cmd
}

func appListCmd() *cobra.Command {
	var f repo.ApplicationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListApplications(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Listing", "Applicant", "Match", "Status"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.ListingID, a.ApplicantID, a.MatchScore, a.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ListingID, "listing", "", "listing filter")
	cmd.Flags().StringVar(&f.ApplicantID, "applicant", "", "applicant filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func appShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.GetApplication(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func appAdvanceCmd() *cobra.Command {
	var status, reason string
	cmd := &cobra.Command{
		Use:   "advance <id>",
		Short: "Advance an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AdvanceApplication(ctx, args[0], status, reason, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target status")
	cmd.Flags().StringVar(&reason, "reason", "", "reason (required for rejections)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func appWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw <id>",
		Short: "Withdraw an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.WithdrawApplication(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func appNoteCmd() *cobra.Command {
	var opts engine.VisitNoteOptions
	cmd := &cobra.Command{
		Use:   "note <id>",
		Short: "Add a visit note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ApplicationID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.AddVisitNote(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&opts.VisitType, "type", "", "visit type (meet_greet, home_check, follow_up, ...)")
	cmd.Flags().StringVar(&opts.VisitDate, "date", "", "visit date (RFC3339)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note text")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}

func appFinalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finalize <id>",
		Short: "Finalize the adoption for one ready application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.FinalizeApplication(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func meetGreetCmd() *cobra.Command {
	mg := &cobra.Command{Use: "meetgreet", Short: "Meet & greet visits"}
	mg.AddCommand(meetGreetScheduleCmd())
	mg.AddCommand(meetGreetConfirmCmd())
	mg.AddCommand(meetGreetCompleteCmd())
	return mg
}

func meetGreetScheduleCmd() *cobra.Command {
	var opts engine.MeetGreetScheduleOptions
	cmd := &cobra.Command{
		Use:   "schedule <application-id>",
		Short: "Schedule a meet & greet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ApplicationID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.ScheduleMeetGreet(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ScheduledAt, "at", "", "scheduled time (RFC3339)")
	cmd.Flags().IntVar(&opts.DurationMinutes, "duration", 0, "duration minutes")
	cmd.Flags().StringVar(&opts.LocationType, "location", "", "location type (public_place, owner_home, ...)")
	cmd.Flags().StringVar(&opts.LocationDetails, "location-details", "", "location details")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func meetGreetConfirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a meet & greet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.ConfirmMeetGreet(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func meetGreetCompleteCmd() *cobra.Command {
	var outcome, ownerNotes, adopterNotes string
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Record a meet & greet outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CompleteMeetGreet(ctx, args[0], outcome, ownerNotes, adopterNotes, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "", "outcome (success, concerns, not_a_match)")
	cmd.Flags().StringVar(&ownerNotes, "owner-notes", "", "owner notes")
	cmd.Flags().StringVar(&adopterNotes, "adopter-notes", "", "adopter notes")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func homeCheckCmd() *cobra.Command {
	hc := &cobra.Command{Use: "homecheck", Short: "Home checks"}
	hc.AddCommand(homeCheckScheduleCmd())
	hc.AddCommand(homeCheckCompleteCmd())
	return hc
}

func homeCheckScheduleCmd() *cobra.Command {
	var opts engine.HomeCheckScheduleOptions
	cmd := &cobra.Command{
		Use:   "schedule <application-id>",
		Short: "Schedule a home check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ApplicationID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.ScheduleHomeCheck(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ScheduledAt, "at", "", "scheduled time (RFC3339)")
	cmd.Flags().StringVar(&opts.PerformedBy, "performed-by", "", "inspector (defaults to owner)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func homeCheckCompleteCmd() *cobra.Command {
	var passed bool
	var notes, checklistJSON string
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Record a home check result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var checklist map[string]map[string]bool
			if checklistJSON != "" {
				if err := json.Unmarshal([]byte(checklistJSON), &checklist); err != nil {
					return fmt.Errorf("invalid checklist JSON: %w", err)
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.CompleteHomeCheck(ctx, args[0], checklist, passed, notes, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
	cmd.Flags().BoolVar(&passed, "passed", false, "home check passed")
	cmd.Flags().StringVar(&notes, "notes", "", "inspector notes")
	cmd.Flags().StringVar(&checklistJSON, "checklist-json", "", `checklist JSON, e.g. {"safety":{"fenced_yard":true}}`)
	return cmd
}

func contractCmd() *cobra.Command {
	c := &cobra.Command{Use: "contract", Short: "Adoption contracts"}
	c.AddCommand(&cobra.Command{
		Use:   "sign <id>",
		Short: "Sign a contract as the current actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SignContract(ctx, args[0], viper.GetString("actor-id"), "")
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "show <application-id>",
		Short: "Show the contract for an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Repo.GetContractByApplication(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	})
	return c
}

func paymentCmd() *cobra.Command {
	p := &cobra.Command{Use: "payment", Short: "Adoption payments"}
	var status string
	set := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Move a payment through its lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SetPaymentStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	set.Flags().StringVar(&status, "status", "", "target status (pending, escrow, released, refunded)")
	_ = set.MarkFlagRequired("status")
	p.AddCommand(set)
	p.AddCommand(&cobra.Command{
		Use:   "show <application-id>",
		Short: "Show the payment for an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Repo.GetPaymentByApplication(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	})
	return p
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale drafts and overdue listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ExpireStale(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func apiKeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "API keys"}
	k.AddCommand(apiKeyCreateCmd())
	k.AddCommand(apiKeyListCmd())
	k.AddCommand(apiKeyDeleteCmd())
	return k
}

func apiKeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				raw := "hw_" + strings.ReplaceAll(uuid.NewString(), "-", "")
				key := domain.APIKey{
					ID:      uuid.NewString(),
					ActorID: viper.GetString("actor-id"),
					Name:    name,
					KeyHash: repo.HashAPIKey(raw),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				// printed once, never stored in plaintext
				return printJSONOrTable(map[string]string{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"name":     key.Name,
					"key":      raw,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the current actor's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, key := range items {
					tw.AppendRow(table.Row{key.ID, key.Name, key.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func apiKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: interventions, requests, listings, applications, and payments.",
	}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListEvents(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, cfg, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("HOMEWARD_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			if authCfg.JWTSecret == "" && !allowLegacy {
				return fmt.Errorf("HOMEWARD_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor for local use)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Homeward API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor", false, "accept unauthenticated X-Actor-Id header (local use only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, cfg, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, engine.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, _, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
