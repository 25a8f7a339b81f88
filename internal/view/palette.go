package view

import "github.com/leapstack-labs/fraudviz/pkg/core"

// Node styling.
const (
	UserColor        = "#667eea"
	TransactionColor = "#f59e0b"
	UserSize         = 50
	TransactionSize  = 40

	// FallbackEdgeColor is used for relationship types without a palette entry.
	FallbackEdgeColor = "#94a3b8"
)

var edgePalette = map[core.RelationshipType]string{
	core.RelSent:                "#10b981",
	core.RelReceivedBy:          "#10b981",
	core.RelSharedEmail:         "#ef4444",
	core.RelSharedPhone:         "#8b5cf6",
	core.RelSharedAddress:       "#ec4899",
	core.RelSharedPaymentMethod: "#3b82f6",
	core.RelCreditTo:            "#14b8a6",
	core.RelDebitFrom:           "#14b8a6",
	core.RelSharedDevice:        "#f97316",
	core.RelSharedIP:            "#f97316",
}

// EdgeColor returns the display colour for a relationship type.
func EdgeColor(rel core.RelationshipType) string {
	if c, ok := edgePalette[rel]; ok {
		return c
	}
	return FallbackEdgeColor
}

// NodeStyle returns the display colour and size for a node type.
func NodeStyle(t core.NodeType) (color string, size int) {
	if t == core.NodeTransaction {
		return TransactionColor, TransactionSize
	}
	return UserColor, UserSize
}
