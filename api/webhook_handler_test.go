package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMidtransSignature(t *testing.T) {
	// sha512(order_id + status_code + gross_amount + server_key) per the
	// Midtrans notification contract.
	got := midtransSignature("order-1", "200", "15000.00", "server-key")
	assert.Equal(t,
		"864186587242b7bfcd21185988760a15ddad976331d6167d2f676139d162a3ee"+
			"0ee01506e235e8e79d0a762483a66d10a695f9c35d30dbd92dbe0806143616f2",
		got)

	assert.NotEqual(t, got, midtransSignature("order-2", "200", "15000.00", "server-key"))
}
