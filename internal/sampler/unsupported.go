package sampler

// UnsupportedThermalReader, UnsupportedBatteryReader, and
// UnsupportedResourceReader always report ok=false. They let callers
// construct samplers on platforms with no primitive to poll, without a
// nil-reader special case at every call site.
type UnsupportedThermalReader struct{}

func (UnsupportedThermalReader) ReadLevel() (ThermalLevel, bool) { return ThermalUnavailable, false }

type UnsupportedBatteryReader struct{}

func (UnsupportedBatteryReader) ReadLevel() (float32, bool) { return 0, false }

type UnsupportedResourceReader struct{}

func (UnsupportedResourceReader) ReadRSSMB() (float64, bool) { return 0, false }
