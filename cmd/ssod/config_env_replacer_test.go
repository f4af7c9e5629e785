package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Int    int
	String string
	NotMe  string
}

type testConfig struct {
	Int    int
	String string
	Struct testStruct
	Map    map[string]interface{}
}

func TestReplaceEnv(t *testing.T) {
	data := &testConfig{
		String: "$replace_me",
		Struct: testStruct{
			String: "$me_too",
			NotMe:  "$does_not_exist",
		},
	}

	replacer := func(key string) string {
		switch key {
		case "replace_me":
			return "foo"
		case "me_too":
			return "bar"
		default:
			return ""
		}
	}

	require.NoError(t, replaceEnvKeys(data, replacer))

	require.Equal(t, &testConfig{
		String: "foo",
		Struct: testStruct{String: "bar", NotMe: ""},
	}, data)
}
