package model

import "time"

// Customer represents a row in the `customers` table.  A customer owns its
// bank accounts; deleting it removes them together with their operations.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name.
//  Email        – contact address, also the customer's login username.
//  PasswordHash – bcrypt hash shared with the customer's identity.
//  CreatedAt    – timestamp of creation.
type Customer struct {
    ID           int64
    Name         string
    Email        string
    PasswordHash string
    CreatedAt    time.Time
}
