// Package action defines the closed set of operations accepted by the RPC
// endpoint and the envelope they travel in.
package action

import (
	"encoding/json"
	"fmt"
)

// Action names one RPC operation.
type Action string

const (
	InitDB                Action = "init-db"
	LogAnalytics          Action = "log-analytics"
	SaveUser              Action = "save-user"
	GetUser               Action = "get-user"
	SaveHistory           Action = "save-history"
	GetHistory            Action = "get-history"
	SaveProfile           Action = "save-profile"
	GetProfiles           Action = "get-profiles"
	DeleteProfile         Action = "delete-profile"
	VerifyAdmin           Action = "verify-admin"
	GetAdminStats         Action = "get-admin-stats"
	GetAdminPrompt        Action = "get-admin-prompt"
	SaveAdminPrompt       Action = "save-admin-prompt"
	AdminGetUsers         Action = "admin-get-users"
	AdminTogglePaid       Action = "admin-toggle-paid"
	AdminToggleUnlimited  Action = "admin-toggle-unlimited"
	AdminGeneratePromo    Action = "admin-generate-promo"
	AdminGetPromoCodes    Action = "admin-get-promo-codes"
	ValidatePromoCode     Action = "validate-promo-code"
	IncrementGeneration   Action = "increment-generation"
	CreateCheckoutSession Action = "create-checkout-session"
	StripeWebhook         Action = "stripe-webhook"
	Research              Action = "research"
	GenerateHooks         Action = "generate-hooks"
)

var all = []Action{
	InitDB, LogAnalytics, SaveUser, GetUser, SaveHistory, GetHistory,
	SaveProfile, GetProfiles, DeleteProfile, VerifyAdmin, GetAdminStats,
	GetAdminPrompt, SaveAdminPrompt, AdminGetUsers, AdminTogglePaid,
	AdminToggleUnlimited, AdminGeneratePromo, AdminGetPromoCodes,
	ValidatePromoCode, IncrementGeneration, CreateCheckoutSession,
	StripeWebhook, Research, GenerateHooks,
}

var known = func() map[Action]struct{} {
	m := make(map[Action]struct{}, len(all))
	for _, a := range all {
		m[a] = struct{}{}
	}
	return m
}()

// All returns every known action.
func All() []Action {
	out := make([]Action, len(all))
	copy(out, all)
	return out
}

// ErrUnknown is returned by Parse for names outside the action set.
type ErrUnknown struct {
	Name string
}

func (e *ErrUnknown) Error() string {
	return fmt.Sprintf("unknown action %q", e.Name)
}

// Parse converts a wire name to an Action.
func Parse(name string) (Action, error) {
	a := Action(name)
	if _, ok := known[a]; !ok {
		return "", &ErrUnknown{Name: name}
	}
	return a, nil
}

func (a Action) String() string { return string(a) }

// RequiresAdmin reports whether the action is gated by the admin password.
func (a Action) RequiresAdmin() bool {
	switch a {
	case GetAdminStats, SaveAdminPrompt, AdminGetUsers, AdminTogglePaid,
		AdminToggleUnlimited, AdminGeneratePromo, AdminGetPromoCodes:
		return true
	}
	return false
}

// UserScoped reports whether the action reads or writes data owned by the
// calling user, and therefore consults the identity token.
func (a Action) UserScoped() bool {
	switch a {
	case SaveUser, GetUser, SaveHistory, GetHistory, SaveProfile, GetProfiles,
		DeleteProfile, ValidatePromoCode, IncrementGeneration, CreateCheckoutSession:
		return true
	}
	return false
}

// NeedsTables reports whether the action touches the database and must
// wait for table initialization.
func (a Action) NeedsTables() bool {
	switch a {
	case VerifyAdmin, Research, StripeWebhook:
		return false
	}
	return true
}

// Timeout classes used by clients.
type Budget int

const (
	// BudgetSync covers routine reads and writes.
	BudgetSync Budget = iota
	// BudgetLong covers AI generation and payment checkout.
	BudgetLong
)

// Budget returns the client-side timeout class of the action.
func (a Action) Budget() Budget {
	switch a {
	case Research, GenerateHooks, CreateCheckoutSession:
		return BudgetLong
	}
	return BudgetSync
}

// Envelope is the body of every RPC request.
type Envelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
