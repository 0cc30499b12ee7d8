package model

import (
	"testing"

	"gorm.io/datatypes"
)

func TestDispatchFields_WithBreakdown(t *testing.T) {
	m := &CampaignModel{
		CrowdfundingData: datatypes.JSON(`{"general_description":"Clear the riverbank"}`),
		TaskSpecifics:    datatypes.JSON(`{"estimated_time_hours":6,"photo_breakdown":[{"subtotal":12.5},{"description":"no price"},{"subtotal":"7"}]}`),
		LocationGps:      datatypes.JSON(`{"latitude":-1.28,"longitude":36.82,"address":null}`),
	}

	f, err := m.DispatchFields()
	if err != nil {
		t.Fatalf("DispatchFields: %v", err)
	}
	if f.GeneralDescription != "Clear the riverbank" {
		t.Errorf("description = %q", f.GeneralDescription)
	}
	if f.Latitude != -1.28 || f.Longitude != 36.82 || f.EstimatedTimeHours != 6 {
		t.Errorf("unexpected shared fields: %+v", f)
	}
	want := []float64{12.5, 0, 0}
	if len(f.Breakdown) != len(want) {
		t.Fatalf("breakdown = %v", f.Breakdown)
	}
	for i := range want {
		if f.Breakdown[i] != want[i] {
			t.Errorf("breakdown[%d] = %v, want %v", i, f.Breakdown[i], want[i])
		}
	}
}

func TestDispatchFields_NullColumns(t *testing.T) {
	m := &CampaignModel{LocationGps: datatypes.JSON(`{"latitude":null,"longitude":null}`)}

	f, err := m.DispatchFields()
	if err != nil {
		t.Fatalf("DispatchFields: %v", err)
	}
	if f.Latitude != 0 || f.Longitude != 0 || f.Breakdown != nil || f.GeneralDescription != "" {
		t.Fatalf("expected zero values, got %+v", f)
	}
}

func TestDispatchFields_MalformedJSON(t *testing.T) {
	m := &CampaignModel{TaskSpecifics: datatypes.JSON(`{`)}
	if _, err := m.DispatchFields(); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCampaignStateHelpers(t *testing.T) {
	addr := "0x0000000000000000000000000000000000000abc"
	empty := ""
	cases := []struct {
		name     string
		m        CampaignModel
		deployed bool
	}{
		{"nil address", CampaignModel{}, false},
		{"empty address", CampaignModel{ContractAddress: &empty}, false},
		{"deployed", CampaignModel{ContractAddress: &addr}, true},
	}
	for _, c := range cases {
		if got := c.m.IsDeployed(); got != c.deployed {
			t.Errorf("%s: IsDeployed = %v", c.name, got)
		}
	}
	if (&CampaignModel{DispatchStatus: DispatchStatusDispatching}).IsDispatched() {
		t.Error("dispatching must not count as dispatched")
	}
}
