package router

import (
	"testing"

	"guardian-relay/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	sender := models.Sender{ID: "900"}

	tests := []struct {
		text     string
		wantOK   bool
		wantName string
		wantArgs string
	}{
		{"/start", true, "start", ""},
		{"/Aprovar 555", true, "aprovar", "555"},
		{"/cadastrar@GuardiaoBot 1;2;3", true, "cadastrar", "1;2;3"},
		{"  /atualizar 42;Nome;Ana Maria  ", true, "atualizar", "42;Nome;Ana Maria"},
		{"agressor na escola", false, "", ""},
		{"/", false, "", ""},
		{"/@bot", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, ok := ParseCommand(sender, tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantName, cmd.Name)
				assert.Equal(t, tt.wantArgs, cmd.Args)
				assert.Equal(t, sender, cmd.Sender)
			}
		})
	}
}
