package core

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

func TestConfig_businessLocation(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     string
	}{
		{name: "known zone", timezone: "Europe/Paris", want: "Europe/Paris"},
		{name: "unknown zone", timezone: "Mars/Olympus", want: "UTC"},
		{name: "empty", timezone: "", want: "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := new(Config)
			conf.SetBusiness(BusinessConfig{Timezone: tt.timezone})
			assert.Equal(t, tt.want, conf.Business().Location().String())
			// resolved once per SetBusiness, not per call
			assert.Same(t, conf.Business().Location(), conf.Business().Location())
		})
	}

	conf := new(Config)
	assert.Same(t, time.UTC, conf.Business().Location())

	conf.SetBusiness(BusinessConfig{Timezone: "Europe/Paris"})
	paris := conf.Business().Location()
	conf.SetBusiness(BusinessConfig{Timezone: "Asia/Tokyo"})
	assert.NotSame(t, paris, conf.Business().Location())
	assert.Equal(t, "Asia/Tokyo", conf.Business().Location().String())
}
