package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvValidators(t *testing.T) {
	tests := []struct {
		name     string
		validate func(string) error
		value    string
		wantErr  bool
	}{
		{"bool true", validateEnvBool, "true", false},
		{"bool numeric", validateEnvBool, "0", false},
		{"bool invalid", validateEnvBool, "yes", true},
		{"port ok", validateEnvPort, "465", false},
		{"port zero", validateEnvPort, "0", true},
		{"port text", validateEnvPort, "smtp", true},
		{"min detections ok", validateEnvMinDetections, "2", false},
		{"min detections zero", validateEnvMinDetections, "0", true},
		{"twilio sid ok", validateEnvTwilioSID, "AC0123456789abcdef0123456789abcdef", false},
		{"twilio sid short", validateEnvTwilioSID, "AC123", true},
		{"phone ok", validateEnvPhoneNumber, "+358401234567", false},
		{"phone local", validateEnvPhoneNumber, "0401234567", true},
		{"phone list ok", validateEnvPhoneList, "+358401234567, +14155550100", false},
		{"phone list bad entry", validateEnvPhoneList, "+358401234567,abc", true},
		{"email list ok", validateEnvEmailList, "a@example.com, b@example.com", false},
		{"email list bad", validateEnvEmailList, "not-an-address", true},
		{"mongo uri ok", validateEnvMongoURI, "mongodb://localhost:27017/", false},
		{"mongo srv ok", validateEnvMongoURI, "mongodb+srv://cluster.example.net", false},
		{"mongo uri bad", validateEnvMongoURI, "http://localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
