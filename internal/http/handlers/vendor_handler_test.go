package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/sources/vendor"
)

func TestSyncVendor(t *testing.T) {
	env := newTestEnv(t)

	env.vendor.report = &ingest.SyncReport{Listed: 3, Imported: 2, Duplicates: 1}
	w := env.do(t, http.MethodPost, "/vendor/sync", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if r := decode[ingest.SyncReport](t, w); r.Imported != 2 || r.Duplicates != 1 {
		t.Fatalf("unexpected report %+v", r)
	}

	cases := []struct {
		err  error
		want int
		code string
	}{
		{ingest.ErrNoVendorAccount, http.StatusConflict, ErrCodeVendorNotLinked},
		{fmt.Errorf("list page: %w", vendor.ErrUnauthorized), http.StatusBadGateway, ErrCodeVendorUnauthorized},
		{fmt.Errorf("list page: %w", vendor.ErrTransport), http.StatusBadGateway, ErrCodeUpstreamFailed},
	}
	for _, tc := range cases {
		env.vendor.err = tc.err
		w := env.do(t, http.MethodPost, "/vendor/sync", nil, nil)
		if w.Code != tc.want {
			t.Fatalf("%v: status=%d; want %d", tc.err, w.Code, tc.want)
		}
		if er := decode[ErrorResponse](t, w); er.Code != tc.code {
			t.Fatalf("%v: code=%q; want %q", tc.err, er.Code, tc.code)
		}
	}
}

func TestListDevicesAndTest(t *testing.T) {
	env := newTestEnv(t)
	env.vendor.devices = []vendor.Device{{SerialNumber: "SN1", Name: "desk"}}
	env.vendor.ok = true

	w := env.do(t, http.MethodGet, "/vendor/devices", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("devices status=%d", w.Code)
	}
	if d := decode[DevicesResponse](t, w); len(d.Devices) != 1 || d.Devices[0].SerialNumber != "SN1" {
		t.Fatalf("unexpected devices %+v", d)
	}

	w = env.do(t, http.MethodGet, "/vendor/test", nil, nil)
	if w.Code != http.StatusOK || !decode[ConnectionResponse](t, w).OK {
		t.Fatalf("test status=%d body=%s", w.Code, w.Body.String())
	}
}
