package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hooka/internal/api/v1/dto"
	"hooka/internal/client"
	"hooka/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Ask the backend to prepare its tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.store.Init()
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "init requested")
			return err
		},
	}
}

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Show or edit the current user"}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := c.requireUser()
			if err != nil {
				return err
			}
			return c.print(cmd, c.store.GetUser(cmd.Context(), id))
		},
	}

	var id, name, brand, email, phone string
	save := &cobra.Command{
		Use:   "save",
		Short: "Create or update the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == "" {
				id = c.cfg.UserID
			}
			if id == "" {
				if email == "" {
					return errors.New("--email or --id is required for a new user")
				}
				id = model.StableID("email", email)
			}
			user := model.UserProfile{ID: id, CreatedAt: time.Now().UnixMilli()}
			if existing := c.store.GetUser(cmd.Context(), id); existing != nil {
				user = *existing
			}
			if name != "" {
				user.Name = name
			}
			if brand != "" {
				user.Brand = brand
			}
			if email != "" {
				user.Email = email
			}
			if phone != "" {
				user.Phone = &phone
			}
			if user.Name == "" {
				return errors.New("--name is required")
			}
			c.store.SaveUser(cmd.Context(), user)
			c.cfg.UserID = user.ID
			if err := saveConfig(c.configPath, c.cfg); err != nil {
				c.logger.Warn().Err(err).Msg("Could not remember user id")
			}
			c.store.LogEvent("profile_updated", map[string]any{"userId": user.ID})
			return c.print(cmd, user)
		},
	}
	save.Flags().StringVar(&id, "id", "", "User id (derived from email when empty)")
	save.Flags().StringVar(&name, "name", "", "Display name")
	save.Flags().StringVar(&brand, "brand", "", "Brand name")
	save.Flags().StringVar(&email, "email", "", "Email address")
	save.Flags().StringVar(&phone, "phone", "", "Phone number")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.store.ClearUser(cmd.Context())
			c.cfg.UserID = ""
			return saveConfig(c.configPath, c.cfg)
		},
	}

	cmd.AddCommand(show, save, logout)
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "history", Short: "Past generations"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List past generations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.print(cmd, c.store.GetHistory(cmd.Context()))
		},
	})
	return cmd
}

func (c *cli) profilesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "profiles", Short: "Saved brief templates"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved briefs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.print(cmd, c.store.GetProfiles(cmd.Context()))
		},
	}

	var id, name, briefPath string
	save := &cobra.Command{
		Use:   "save",
		Short: "Save a brief file under a name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			brief, err := readBrief(briefPath)
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			profile := model.BriefProfile{ID: id, Name: name, Brief: brief}
			c.store.SaveProfile(cmd.Context(), profile)
			return c.print(cmd, profile)
		},
	}
	save.Flags().StringVar(&id, "id", "", "Profile id (random when empty)")
	save.Flags().StringVar(&name, "name", "", "Profile name")
	save.Flags().StringVar(&briefPath, "brief", "", "Brief YAML file")
	_ = save.MarkFlagRequired("name")
	_ = save.MarkFlagRequired("brief")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved brief",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.store.DeleteProfile(cmd.Context(), args[0])
			return nil
		},
	}

	cmd.AddCommand(list, save, del)
	return cmd
}

func (c *cli) generateCmd() *cobra.Command {
	var briefPath string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate hook concepts for a brief",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			brief, err := readBrief(briefPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c.store.LogEvent("generate_started", map[string]any{"language": brief.Language})
			concepts, err := c.ai.GenerateHooks(ctx, brief)
			if err != nil {
				return err
			}
			c.store.SaveHistoryItem(ctx, model.HistoryItem{
				ID:        uuid.NewString(),
				Timestamp: time.Now().UnixMilli(),
				Concepts:  concepts,
				Brief:     brief,
			})
			if id := c.cfg.UserID; id != "" {
				c.store.IncrementGeneration(ctx, id)
			}
			return c.print(cmd, concepts)
		},
	}
	cmd.Flags().StringVar(&briefPath, "brief", "", "Brief YAML file")
	_ = cmd.MarkFlagRequired("brief")
	return cmd
}

func (c *cli) researchCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "research <url>",
		Short: "Draft a brief from a landing page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.ai.Research(cmd.Context(), args[0], model.Language(lang))
			if err != nil {
				return err
			}
			return c.print(cmd, res)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", string(model.LanguageDE), "Output language (DE or EN)")
	return cmd
}

func (c *cli) promoCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "promo", Short: "Promo codes"}
	cmd.AddCommand(&cobra.Command{
		Use:   "redeem <code>",
		Short: "Redeem a promo code for unlimited access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.requireUser()
			if err != nil {
				return err
			}
			res, err := c.store.RedeemPromo(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			return c.print(cmd, res)
		},
	})
	return cmd
}

func (c *cli) checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Start a subscription checkout and print its URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := c.requireUser()
			if err != nil {
				return err
			}
			var email string
			if u := c.store.GetUser(cmd.Context(), id); u != nil {
				email = u.Email
			}
			url, err := c.store.Checkout(cmd.Context(), id, email)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), url)
			return err
		},
	}
}

func (c *cli) adminCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Admin console"}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the admin password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := c.ai.VerifyAdmin(cmd.Context(), c.password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(ok))
			return err
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Usage totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.ai.AdminStats(cmd.Context(), c.password)
			if err != nil {
				return err
			}
			return c.print(cmd, s)
		},
	}

	prompt := &cobra.Command{Use: "prompt", Short: "System prompt override"}
	prompt.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the system prompt override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.ai.AdminPrompt(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), p)
			return err
		},
	}, &cobra.Command{
		Use:   "set <prompt>",
		Short: "Replace the system prompt override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ai.SaveAdminPrompt(cmd.Context(), c.password, args[0])
		},
	})

	users := &cobra.Command{
		Use:   "users",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.ai.AdminUsers(cmd.Context(), c.password)
			if err != nil {
				return err
			}
			return c.print(cmd, list)
		},
	}

	togglePaid := c.toggleCmd("toggle-paid", "Flip a user's paid flag", (*client.AI).TogglePaid)
	toggleUnlimited := c.toggleCmd("toggle-unlimited", "Flip a user's unlimited flag", (*client.AI).ToggleUnlimited)

	var code string
	promoGenerate := &cobra.Command{
		Use:   "promo-generate",
		Short: "Create a single-use promo code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.ai.GeneratePromo(cmd.Context(), c.password, code)
			if err != nil {
				return err
			}
			return c.print(cmd, p)
		},
	}
	promoGenerate.Flags().StringVar(&code, "code", "", "Code to create (random when empty)")

	promoList := &cobra.Command{
		Use:   "promo-list",
		Short: "List promo codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codes, err := c.ai.PromoCodes(cmd.Context(), c.password)
			if err != nil {
				return err
			}
			return c.print(cmd, codes)
		},
	}

	cmd.AddCommand(verify, stats, prompt, users, togglePaid, toggleUnlimited, promoGenerate, promoList)
	return cmd
}

type toggleFunc func(ai *client.AI, ctx context.Context, password, userID string, value *bool) (dto.ToggleResponse, error)

func (c *cli) toggleCmd(use, short string, fn toggleFunc) *cobra.Command {
	var value bool
	cmd := &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v *bool
			if cmd.Flags().Changed("set") {
				v = &value
			}
			res, err := fn(c.ai, cmd.Context(), c.password, args[0], v)
			if err != nil {
				return err
			}
			return c.print(cmd, res)
		},
	}
	cmd.Flags().BoolVar(&value, "set", false, "Set the flag instead of flipping it")
	return cmd
}
