package severity

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		exposureTypes []string
		want          string
	}{
		{name: "password alone", exposureTypes: []string{"password"}, want: "high"},
		{name: "high beats medium", exposureTypes: []string{"email", "password"}, want: "high"},
		{name: "high beats medium regardless of order", exposureTypes: []string{"password", "email"}, want: "high"},
		{name: "hash", exposureTypes: []string{"hash"}, want: "high"},
		{name: "credential singular", exposureTypes: []string{"credential"}, want: "high"},
		{name: "credentials plural", exposureTypes: []string{"credentials"}, want: "high"},
		{name: "email is medium", exposureTypes: []string{"email"}, want: "medium"},
		{name: "phone is medium", exposureTypes: []string{"phone"}, want: "medium"},
		{name: "ssn with unknown tag", exposureTypes: []string{"mention", "ssn"}, want: "medium"},
		{name: "mention is low", exposureTypes: []string{"mention"}, want: "low"},
		{name: "empty set is low", exposureTypes: nil, want: "low"},
		{name: "case insensitive", exposureTypes: []string{"PassWord"}, want: "high"},
		{name: "case insensitive medium", exposureTypes: []string{"Email"}, want: "medium"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tc.exposureTypes); got != tc.want {
				t.Fatalf("Classify(%v) = %q, want %q", tc.exposureTypes, got, tc.want)
			}
		})
	}
}
