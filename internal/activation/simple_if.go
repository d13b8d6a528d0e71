package activation

// SimpleIFSettings configures a SimpleIF unit.
type SimpleIFSettings struct {
	StimuliCoeff      float64
	Resistance        float64
	DecayRate         float64
	ResetV            float64
	FiringThresholdV  float64
	RefractoryPeriods int
}

// DefaultSimpleIFSettings returns typical membrane constants.
func DefaultSimpleIFSettings() SimpleIFSettings {
	return SimpleIFSettings{
		StimuliCoeff:      1,
		Resistance:        15,
		DecayRate:         0.05,
		ResetV:            5,
		FiringThresholdV:  20,
		RefractoryPeriods: 1,
	}
}

// SimpleIF is a minimal integrate-and-fire unit emitting 1 on a spike and 0
// otherwise. It has no derivative.
type SimpleIF struct {
	cfg          SimpleIFSettings
	membraneV    float64
	inRefractory bool
	refractory   int
}

func NewSimpleIF(cfg SimpleIFSettings) *SimpleIF {
	if cfg.ResetV < 0 {
		cfg.ResetV = -cfg.ResetV
	}
	if cfg.FiringThresholdV < 0 {
		cfg.FiringThresholdV = -cfg.FiringThresholdV
	}
	return &SimpleIF{cfg: cfg}
}

func (s *SimpleIF) Reset() {
	s.membraneV = 0
	s.inRefractory = false
	s.refractory = 0
}

// MembraneV exposes the internal membrane potential.
func (s *SimpleIF) MembraneV() float64 {
	return s.membraneV
}

func (s *SimpleIF) Compute(x float64) float64 {
	x *= s.cfg.StimuliCoeff
	if s.membraneV >= s.cfg.FiringThresholdV {
		s.membraneV = s.cfg.ResetV
		s.refractory = 0
		s.inRefractory = true
	}
	if s.inRefractory {
		s.refractory++
		if s.refractory > s.cfg.RefractoryPeriods {
			s.refractory = 0
			s.inRefractory = false
		} else {
			x = 0
		}
	}
	s.membraneV *= 1 - s.cfg.DecayRate
	s.membraneV += s.cfg.Resistance * x
	if s.membraneV >= s.cfg.FiringThresholdV {
		return 1
	}
	return 0
}
