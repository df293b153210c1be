package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty becomes silent page turn",
			in:   "   ",
			want: ReplyEmpty,
		},
		{
			name: "already wrapped action is untouched",
			in:   "*marque sa page*",
			want: "*marque sa page*",
		},
		{
			name: "short action sentence gets wrapped",
			in:   "tourne une page lentement",
			want: "*tourne une page lentement*",
		},
		{
			name: "long action sentence stays as is",
			in:   "il ferme son livre et commence une très longue digression sur le sujet",
			want: "il ferme son livre et commence une très longue digression sur le sujet",
		},
		{
			name: "explanation gets a book gesture",
			in:   "Je t'explique : la gravité courbe l'espace-temps.",
			want: "*pose son livre* Je t'explique : la gravité courbe l'espace-temps.",
		},
		{
			name: "plain answer passes through",
			in:   "Oui.",
			want: "Oui.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.in))
		})
	}
}

func TestGreetingDependsOnPrivilege(t *testing.T) {
	adminGreeting := Greeting(true, "Marceline")
	assert.Contains(t, adminGreeting, "Marceline")

	guestGreeting := Greeting(false, "inconnu")
	assert.NotContains(t, guestGreeting, "inconnu")
	assert.NotEqual(t, adminGreeting, guestGreeting)
}

func TestHelpListsCommandsForGuests(t *testing.T) {
	help := Help(false, "")
	for _, cmd := range []string{"/reset", "/search", "/fiche", "/ebook", "/resume", "/img"} {
		assert.Contains(t, help, cmd)
	}
}
