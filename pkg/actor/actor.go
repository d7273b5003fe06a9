// Package actor carries the identity of whoever is looking at a document.
//
// A request either comes from the editor (no actor, or an actor with
// RoleEditor) or from a signer following a signing link. The overlay uses
// the signer's ID to decide which fields accept input.
package actor

import (
	"context"
	"fmt"
)

// Role distinguishes document owners placing fields from signers filling them.
type Role string

const (
	RoleEditor Role = "editor"
	RoleSigner Role = "signer"
)

// Actor represents the viewer performing an action.
type Actor struct {
	// ID is the signer ID for RoleSigner, the owner's user ID for RoleEditor
	ID string `json:"id"`

	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`

	// DocumentID scopes a signer to one document
	DocumentID string `json:"document_id,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "anonymous"
	}
	if a.Email == "" {
		return fmt.Sprintf("%s:%s", a.Role, a.ID)
	}
	return fmt.Sprintf("%s:%s (%s)", a.Role, a.ID, a.Email)
}

// SignerID returns the viewer's signer identity, or "" when the viewer
// is not a signer.
func (a *Actor) SignerID() string {
	if a == nil || a.Role != RoleSigner {
		return ""
	}
	return a.ID
}

// CanView reports whether the actor may see the given document.
// Editors are not scoped; signers only see the document their link was issued for.
func (a *Actor) CanView(documentID string) bool {
	if a == nil || a.Role != RoleSigner {
		return true
	}
	return a.DocumentID == "" || a.DocumentID == documentID
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present.
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// SystemActor is used for event-driven operations with no human behind them.
func SystemActor() *Actor {
	return &Actor{
		ID:   "00000000-0000-0000-0000-000000000000",
		Name: "System",
		Role: RoleEditor,
	}
}
