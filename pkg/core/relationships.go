package core

// Connection is one neighbour of an entity in a relationship lookup.
type Connection struct {
	RelationshipType RelationshipType `json:"relationship_type"`
	Connected        map[string]any   `json:"connected"`
	NodeType         string           `json:"node_type"`
}

// ConnectedID returns the user_id or txn_id of the connected entity.
func (c Connection) ConnectedID() string {
	for _, key := range []string{"user_id", "txn_id", "id"} {
		if v, ok := c.Connected[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// UserRelationships is the diagnostic lookup result for a user.
type UserRelationships struct {
	UserID              string       `json:"user_id"`
	DirectTransactions  []Connection `json:"direct_transactions"`
	SharedEmail         []Connection `json:"shared_email"`
	SharedPhone         []Connection `json:"shared_phone"`
	SharedAddress       []Connection `json:"shared_address"`
	SharedPaymentMethod []Connection `json:"shared_payment_method"`
	CreditTo            []Connection `json:"credit_to"`
	DebitFrom           []Connection `json:"debit_from"`
	AllConnections      []Connection `json:"all_connections"`
}

// Add files c under its category and under AllConnections.
func (r *UserRelationships) Add(c Connection) {
	r.AllConnections = append(r.AllConnections, c)
	switch c.RelationshipType {
	case RelSent, RelReceivedBy:
		r.DirectTransactions = append(r.DirectTransactions, c)
	case RelSharedEmail:
		r.SharedEmail = append(r.SharedEmail, c)
	case RelSharedPhone:
		r.SharedPhone = append(r.SharedPhone, c)
	case RelSharedAddress:
		r.SharedAddress = append(r.SharedAddress, c)
	case RelSharedPaymentMethod:
		r.SharedPaymentMethod = append(r.SharedPaymentMethod, c)
	case RelCreditTo:
		r.CreditTo = append(r.CreditTo, c)
	case RelDebitFrom:
		r.DebitFrom = append(r.DebitFrom, c)
	}
}

// TransactionRelationships is the diagnostic lookup result for a transaction.
type TransactionRelationships struct {
	TxnID              string         `json:"txn_id"`
	Sender             map[string]any `json:"sender"`
	Receiver           map[string]any `json:"receiver"`
	SharedDevice       []Connection   `json:"shared_device"`
	SharedIP           []Connection   `json:"shared_ip"`
	AllConnections     []Connection   `json:"all_connections"`
	TransactionDetails map[string]any `json:"transaction_details,omitempty"`
}

// Add files c under its category and under AllConnections.
func (r *TransactionRelationships) Add(c Connection) {
	r.AllConnections = append(r.AllConnections, c)
	switch c.RelationshipType {
	case RelSent:
		r.Sender = c.Connected
	case RelReceivedBy:
		r.Receiver = c.Connected
	case RelSharedDevice:
		r.SharedDevice = append(r.SharedDevice, c)
	case RelSharedIP:
		r.SharedIP = append(r.SharedIP, c)
	}
}

// Relationships is the result of a lookup for either node type.
// Exactly one of User and Transaction is set.
type Relationships struct {
	NodeID      string                    `json:"node_id"`
	User        *UserRelationships        `json:"user,omitempty"`
	Transaction *TransactionRelationships `json:"transaction,omitempty"`
}

// Count returns the number of connections found.
func (r *Relationships) Count() int {
	switch {
	case r == nil:
		return 0
	case r.User != nil:
		return len(r.User.AllConnections)
	case r.Transaction != nil:
		return len(r.Transaction.AllConnections)
	}
	return 0
}

// Connections returns every connection regardless of node type.
func (r *Relationships) Connections() []Connection {
	switch {
	case r == nil:
		return nil
	case r.User != nil:
		return r.User.AllConnections
	case r.Transaction != nil:
		return r.Transaction.AllConnections
	}
	return nil
}
