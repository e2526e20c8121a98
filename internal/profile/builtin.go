package profile

import "sync"

// Well-known global message numbers the decoder and tooling refer to by name.
const (
	MesgFileID           uint16 = 0
	MesgCapabilities     uint16 = 1
	MesgDeviceSettings   uint16 = 2
	MesgUserProfile      uint16 = 3
	MesgHrmProfile       uint16 = 4
	MesgSession          uint16 = 18
	MesgLap              uint16 = 19
	MesgRecord           uint16 = 20
	MesgEvent            uint16 = 21
	MesgDeviceInfo       uint16 = 23
	MesgActivity         uint16 = 34
	MesgHr               uint16 = 132
	MesgFieldDescription uint16 = 206
	MesgDeveloperDataID  uint16 = 207
)

var (
	builtinOnce  sync.Once
	builtinStore *Store
)

// Builtin returns the compiled-in profile snapshot. It covers the common
// activity messages; anything outside of it resolves through a profile
// document loaded at runtime or falls back to synthetic names.
func Builtin() *Store {
	builtinOnce.Do(func() {
		store, err := FromJSON(builtinProfile())
		if err != nil {
			// The snapshot is static data; a failure here is a programming
			// error caught by the package tests.
			panic(err)
		}
		builtinStore = store
	})
	return builtinStore
}

func builtinProfile() JSONFile {
	return JSONFile{Messages: []JSONMessage{
		{Number: MesgFileID, Name: "file_id", Fields: []FieldSchema{
			{Number: 0, Name: "type", Type: "enum"},
			{Number: 1, Name: "manufacturer", Type: "uint16"},
			{Number: 2, Name: "product", Type: "uint16"},
			{Number: 3, Name: "serial_number", Type: "uint32z"},
			{Number: 4, Name: "time_created", Type: "uint32", Units: "s"},
			{Number: 5, Name: "number", Type: "uint16"},
		}},
		{Number: MesgCapabilities, Name: "capabilities", Fields: []FieldSchema{
			{Number: 0, Name: "languages", Type: "uint8z"},
			{Number: 1, Name: "sports", Type: "uint8z"},
			{Number: 21, Name: "workouts_supported", Type: "uint32z"},
			{Number: 23, Name: "connectivity_supported", Type: "uint32z"},
		}},
		{Number: MesgDeviceSettings, Name: "device_settings", Fields: []FieldSchema{
			{Number: 0, Name: "active_time_zone", Type: "uint8"},
			{Number: 1, Name: "utc_offset", Type: "uint32"},
			{Number: 2, Name: "time_offset", Type: "uint32", Units: "s"},
			{Number: 5, Name: "time_zone_offset", Type: "sint8", Scale: 4, Units: "hr"},
		}},
		{Number: MesgUserProfile, Name: "user_profile", Fields: []FieldSchema{
			{Number: 254, Name: "message_index", Type: "uint16"},
			{Number: 1, Name: "gender", Type: "enum"},
			{Number: 2, Name: "age", Type: "uint8", Units: "years"},
			{Number: 3, Name: "height", Type: "uint8", Scale: 100, Units: "m"},
			{Number: 4, Name: "weight", Type: "uint16", Scale: 10, Units: "kg"},
			{Number: 5, Name: "language", Type: "enum"},
			{Number: 8, Name: "resting_heart_rate", Type: "uint8", Units: "bpm"},
		}},
		{Number: MesgHrmProfile, Name: "hrm_profile", Fields: []FieldSchema{
			{Number: 254, Name: "message_index", Type: "uint16"},
			{Number: 0, Name: "enabled", Type: "enum"},
			{Number: 1, Name: "hrm_ant_id", Type: "uint16z"},
			{Number: 2, Name: "log_hrv", Type: "enum"},
			{Number: 3, Name: "hrm_ant_id_trans_type", Type: "uint8z"},
		}},
		{Number: MesgSession, Name: "session", Fields: []FieldSchema{
			{Number: 253, Name: "timestamp", Type: "uint32", Units: "s"},
			{Number: 254, Name: "message_index", Type: "uint16"},
			{Number: 5, Name: "sport", Type: "enum"},
			{Number: 7, Name: "total_elapsed_time", Type: "uint32", Scale: 1000, Units: "s"},
			{Number: 8, Name: "total_timer_time", Type: "uint32", Scale: 1000, Units: "s"},
			{Number: 9, Name: "total_distance", Type: "uint32", Scale: 100, Units: "m"},
			{Number: 13, Name: "total_calories", Type: "uint16", Units: "kcal"},
			{Number: 14, Name: "avg_speed", Type: "uint16", Scale: 1000, Units: "m/s"},
			{Number: 15, Name: "max_speed", Type: "uint16", Scale: 1000, Units: "m/s"},
			{Number: 16, Name: "avg_heart_rate", Type: "uint8", Units: "bpm"},
			{Number: 17, Name: "max_heart_rate", Type: "uint8", Units: "bpm"},
		}},
		{Number: MesgLap, Name: "lap", Fields: []FieldSchema{
			{Number: 253, Name: "timestamp", Type: "uint32", Units: "s"},
			{Number: 254, Name: "message_index", Type: "uint16"},
			{Number: 0, Name: "event", Type: "enum"},
			{Number: 1, Name: "event_type", Type: "enum"},
			{Number: 7, Name: "total_elapsed_time", Type: "uint32", Scale: 1000, Units: "s"},
			{Number: 8, Name: "total_timer_time", Type: "uint32", Scale: 1000, Units: "s"},
			{Number: 9, Name: "total_distance", Type: "uint32", Scale: 100, Units: "m"},
		}},
		{Number: MesgRecord, Name: "record", Fields: []FieldSchema{
			{Number: 253, Name: "timestamp", Type: "uint32", Units: "s"},
			{Number: 0, Name: "position_lat", Type: "sint32", Units: "semicircles"},
			{Number: 1, Name: "position_long", Type: "sint32", Units: "semicircles"},
			{Number: 2, Name: "altitude", Type: "uint16", Scale: 5, Offset: 500, Units: "m"},
			{Number: 3, Name: "heart_rate", Type: "uint8", Units: "bpm"},
			{Number: 4, Name: "cadence", Type: "uint8", Units: "rpm"},
			{Number: 5, Name: "distance", Type: "uint32", Scale: 100, Units: "m", Accumulated: true},
			{Number: 6, Name: "speed", Type: "uint16", Scale: 1000, Units: "m/s"},
			{Number: 7, Name: "power", Type: "uint16", Units: "watts"},
			{Number: 8, Name: "compressed_speed_distance", Type: "byte", Components: []Component{
				{FieldNumber: 6, Bits: 12, Scale: 100},
				{FieldNumber: 5, Bits: 12, Scale: 16},
			}},
			{Number: 18, Name: "cycles", Type: "uint8", Units: "cycles", Accumulated: true},
			{Number: 19, Name: "total_cycles", Type: "uint32", Units: "cycles", Accumulated: true},
			{Number: 73, Name: "enhanced_speed", Type: "uint32", Scale: 1000, Units: "m/s"},
			{Number: 78, Name: "enhanced_altitude", Type: "uint32", Scale: 5, Offset: 500, Units: "m"},
		}},
		{Number: MesgEvent, Name: "event", Fields: []FieldSchema{
			{Number: 253, Name: "timestamp", Type: "uint32", Units: "s"},
			{Number: 0, Name: "event", Type: "enum"},
			{Number: 1, Name: "event_type", Type: "enum"},
			{Number: 2, Name: "data16", Type: "uint16"},
			{Number: 3, Name: "data", Type: "uint32"},
		}},
		{Number: MesgDeviceInfo, Name: "device_info", Fields: []FieldSchema{
			{Number: 253, Name: "timestamp", Type: "uint32", Units: "s"},
			{Number: 0, Name: "device_index", Type: "uint8"},
			{Number: 1, Name: "device_type", Type: "uint8"},
			{Number: 2, Name: "manufacturer", Type: "uint16"},
			{Number: 3, Name: "serial_number", Type: "uint32z"},
			{Number: 4, Name: "product", Type: "uint16"},
			{Number: 5, Name: "software_version", Type: "uint16", Scale: 100},
		}},
		{Number: MesgActivity, Name: "activity", Fields: []FieldSchema{
			{Number: 253, Name: "timestamp", Type: "uint32", Units: "s"},
			{Number: 0, Name: "total_timer_time", Type: "uint32", Scale: 1000, Units: "s"},
			{Number: 1, Name: "num_sessions", Type: "uint16"},
			{Number: 2, Name: "type", Type: "enum"},
			{Number: 5, Name: "local_timestamp", Type: "uint32", Units: "s"},
		}},
		{Number: MesgHr, Name: "hr", Fields: []FieldSchema{
			{Number: 253, Name: "timestamp", Type: "uint32", Units: "s"},
			{Number: 0, Name: "fractional_timestamp", Type: "uint16", Scale: 32768, Units: "s"},
			{Number: 6, Name: "filtered_bpm", Type: "uint8", Units: "bpm"},
			{Number: 9, Name: "event_timestamp", Type: "uint32", Scale: 1024, Units: "s", Accumulated: true},
		}},
		{Number: MesgFieldDescription, Name: "field_description", Fields: []FieldSchema{
			{Number: 0, Name: "developer_data_index", Type: "uint8"},
			{Number: 1, Name: "field_definition_number", Type: "uint8"},
			{Number: 2, Name: "fit_base_type_id", Type: "uint8"},
			{Number: 3, Name: "field_name", Type: "string"},
			{Number: 6, Name: "scale", Type: "uint8"},
			{Number: 7, Name: "offset", Type: "sint8"},
			{Number: 8, Name: "units", Type: "string"},
			{Number: 14, Name: "native_field_num", Type: "uint8"},
		}},
		{Number: MesgDeveloperDataID, Name: "developer_data_id", Fields: []FieldSchema{
			{Number: 0, Name: "developer_id", Type: "byte"},
			{Number: 1, Name: "application_id", Type: "byte"},
			{Number: 2, Name: "manufacturer_id", Type: "uint16"},
			{Number: 3, Name: "developer_data_index", Type: "uint8"},
			{Number: 4, Name: "application_version", Type: "uint32"},
		}},
	}}
}
