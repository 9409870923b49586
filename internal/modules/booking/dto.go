package booking

// ClinicInfo is the public booking configuration shown before a patient
// picks a date. The fee is display-only.
type ClinicInfo struct {
	ConsultationFee float64  `json:"consultation_fee"`
	Currency        string   `json:"currency"`
	HorizonDays     int      `json:"max_booking_days"`
	WorkingDays     []string `json:"working_days"`
	TimeSlots       []string `json:"time_slots"`
	Timezone        string   `json:"timezone"`
}

type SelectDateRequest struct {
	Date string `json:"date" binding:"required"`
}

type SelectSlotRequest struct {
	Time string `json:"time" binding:"required"`
}

type SetDetailsRequest struct {
	PatientName  string `json:"patient_name" binding:"required"`
	PatientEmail string `json:"patient_email" binding:"required"`
	PatientPhone string `json:"patient_phone" binding:"required"`
	Notes        string `json:"notes"`
}

func (r SetDetailsRequest) details() Details {
	return Details{
		PatientName:  r.PatientName,
		PatientEmail: r.PatientEmail,
		PatientPhone: r.PatientPhone,
		Notes:        r.Notes,
	}
}
