package model

import (
    "strings"
    "time"
)

// Identity is a login principal stored in the `identities` table.  The
// plain password is never kept; only its bcrypt hash.
//
// Fields:
//  ID           – primary key identifier.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  Roles        – granted roles, unique by name, in grant order.
//  CreatedAt    – timestamp of creation.
type Identity struct {
    ID           int64
    Username     string
    PasswordHash string
    Roles        []Role
    CreatedAt    time.Time
}

// HasRole reports whether a role with the given name has been granted.
func (i Identity) HasRole(name string) bool {
    for _, r := range i.Roles {
        if r.Name == name {
            return true
        }
    }
    return false
}

// RoleNames returns the names of the granted roles in grant order.
func (i Identity) RoleNames() []string {
    names := make([]string, 0, len(i.Roles))
    for _, r := range i.Roles {
        names = append(names, r.Name)
    }
    return names
}

// Role names the API layer authorises against.
const (
    RoleAdmin    = "ADMIN"
    RoleCustomer = "CUSTOMER"
)

// Role is a row in the `roles` table.  Names are globally unique.
type Role struct {
    ID          int64  // roles.id
    Name        string // roles.role_name
    Description string // roles.description
}

// ClaimSet is the unsigned content of an access token.  Scope holds the
// space separated role names the identity had when the set was built.
type ClaimSet struct {
    Subject   string
    Scope     string
    IssuedAt  time.Time
    ExpiresAt time.Time
}

// Scopes splits Scope into its role names.
func (c ClaimSet) Scopes() []string {
    return strings.Fields(c.Scope)
}
