package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketRequest_Text(t *testing.T) {
	tests := []struct {
		name string
		req  TicketRequest
		want []string
	}{
		{"full ticket wins", TicketRequest{Ticket: "count trades", Summary: "ignored"}, []string{"count trades"}},
		{"built from parts", TicketRequest{Key: "OPS-1", Summary: "count trades", Description: "by symbol"}, []string{"OPS-1", "count trades", "by symbol"}},
		{"empty", TicketRequest{Key: "OPS-1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.Text()
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}
