package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAgentArgsPositional(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  AgentArgs
		valid bool
	}{
		{"empty", "", AgentArgs{Period: -1}, false},
		{"classes", " /home/federico/classes ", AgentArgs{Classes: "/home/federico/classes/", Period: -1}, true},
		{"jars", " /home/federico/classes , /home/federico/jars ", AgentArgs{
			Classes: "/home/federico/classes/",
			Jars:    "/home/federico/jars/",
			Period:  -1,
		}, true},
		{"period", " /home/federico/classes , /home/federico/jars, 599 ", AgentArgs{
			Classes: "/home/federico/classes/",
			Jars:    "/home/federico/jars/",
			Period:  599,
		}, true},
		{"bad period", "/c,/j,soon", AgentArgs{Classes: "/c/", Jars: "/j/", Period: -1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ParseAgentArgs(c.in)
			assert.Equal(t, c.want, got)
			assert.Equal(t, c.valid, got.Valid())
		})
	}
}

func TestParseAgentArgsNamed(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  AgentArgs
		valid bool
	}{
		{"classes", " classes = /home/federico/classes ", AgentArgs{Classes: "/home/federico/classes/", Period: -1}, true},
		{"jars", " jars = /home/federico/jars ", AgentArgs{Jars: "/home/federico/jars/", Period: -1}, false},
		{"period", " period = 500 ", AgentArgs{Period: 500}, false},
		{"all", " classes = /home/federico/classes , jars = /home/federico/jars , period = 39 ", AgentArgs{
			Classes: "/home/federico/classes/",
			Jars:    "/home/federico/jars/",
			Period:  39,
		}, true},
		{"loglevel", "classes=/c,loglevel= debug ", AgentArgs{Classes: "/c/", Period: -1, LogLevel: "debug"}, true},
		{"malformed pair", "classes=/c,garbage", AgentArgs{Classes: "/c/", Period: -1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ParseAgentArgs(c.in)
			assert.Equal(t, c.want, got)
			assert.Equal(t, c.valid, got.Valid())
		})
	}
}

func TestAgentArgsString(t *testing.T) {
	named := ParseAgentArgs(" classes = /home/federico/classes , jars = /home/federico/jars , period = 39 ")
	assert.Equal(t, "classes=/home/federico/classes/,jars=/home/federico/jars/,period=39", named.String())

	positional := ParseAgentArgs(" /home/federico/classes , /home/federico/jars, 599 ")
	assert.Equal(t, "classes=/home/federico/classes/,jars=/home/federico/jars/,period=599", positional.String())

	built := NewAgentArgs(" /home/federico/classes ", " /home/federico/jars ", -4, "FINEST")
	assert.Equal(t, "classes=/home/federico/classes/,jars=/home/federico/jars/,period=-4,loglevel=FINEST", built.String())

	noJars := ParseAgentArgs("/c")
	assert.Equal(t, "classes=/c/,period=-1", noJars.String())
}
