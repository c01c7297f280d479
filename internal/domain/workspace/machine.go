package workspace

import (
	"errors"
	"fmt"
)

// EventKind identifies what happened to the shell.
type EventKind string

const (
	// EventResolved is the engine committing a resolution pass; Event.View is the target.
	EventResolved EventKind = "resolved"
	// EventSignedIn moves the login screen back to loading so a fresh pass can run.
	EventSignedIn EventKind = "signed_in"
	// EventSignedOut tears the session down from any view.
	EventSignedOut EventKind = "signed_out"

	EventSelectTenant          EventKind = "select_tenant"
	EventSwitchWorkspace       EventKind = "switch_workspace"
	EventOpenAdmin             EventKind = "open_admin"
	EventCloseAdmin            EventKind = "close_admin"
	EventOpenMarketplace       EventKind = "open_marketplace"
	EventStartOnboarding       EventKind = "start_onboarding"
	EventStartBuilderInterview EventKind = "start_builder_interview"
	EventCompleteOnboarding    EventKind = "complete_onboarding"
)

// Event drives Transition.
type Event struct {
	Kind EventKind
	View View // only read for EventResolved
}

// ErrInvalidTransition is returned for events the current view does not accept.
var ErrInvalidTransition = errors.New("invalid view transition")

// userTransitions lists the internal transitions of the terminal views.
var userTransitions = map[View]map[EventKind]View{
	ViewHub: {
		EventSelectTenant:    ViewApp,
		EventOpenMarketplace: ViewMarketplace,
	},
	ViewMarketplace: {
		EventSelectTenant:          ViewApp,
		EventStartOnboarding:       ViewOnboarding,
		EventStartBuilderInterview: ViewBuilderInterview,
	},
	ViewOnboarding: {
		EventCompleteOnboarding: ViewApp,
	},
	ViewBuilderInterview: {
		EventCompleteOnboarding: ViewApp,
		EventOpenMarketplace:    ViewMarketplace,
	},
	ViewApp: {
		EventOpenAdmin:       ViewAdmin,
		EventSwitchWorkspace: ViewHub,
		EventSelectTenant:    ViewApp,
		EventStartOnboarding: ViewOnboarding,
	},
	ViewAdmin: {
		EventCloseAdmin:      ViewApp,
		EventSwitchWorkspace: ViewHub,
	},
	ViewLogin: {
		EventSignedIn: ViewLoading,
	},
}

// Transition is the view state machine. Loading only leaves via EventResolved;
// every other view only moves on user-driven events. Sign-out is accepted everywhere.
func Transition(from View, ev Event) (View, error) {
	if !from.Valid() {
		return from, fmt.Errorf("%w: unknown view %q", ErrInvalidTransition, from)
	}

	switch ev.Kind {
	case EventSignedOut:
		return ViewLogin, nil
	case EventResolved:
		if from != ViewLoading {
			return from, fmt.Errorf("%w: %s already resolved", ErrInvalidTransition, from)
		}
		if !ev.View.Terminal() {
			return from, fmt.Errorf("%w: cannot resolve to %q", ErrInvalidTransition, ev.View)
		}
		return ev.View, nil
	}

	if to, ok := userTransitions[from][ev.Kind]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s does not accept %s", ErrInvalidTransition, from, ev.Kind)
}
