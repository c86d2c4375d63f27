package record

// DemoPatientID identifies the demo chart
const DemoPatientID = "pt-001"

// DemoProvider returns the demo referring provider
func DemoProvider() Provider {
	return Provider{
		Name:        "Monica Kwan",
		Credentials: "MD",
		Specialty:   "Pediatrics",
		NPI:         "1720212772",
		Practice: Practice{
			Name:    "Golden Gate Pediatrics",
			Address: "3838 California Street",
			City:    "San Francisco",
			State:   "CA",
			Zip:     "94118",
			Phone:   "(415) 555-1234",
			Fax:     "(415) 123-5555",
		},
	}
}

// DemoPatient returns the demo chart
func DemoPatient() *Patient {
	return &Patient{
		ID:                DemoPatientID,
		FirstName:         "Alex",
		LastName:          "Wang",
		DateOfBirth:       "2025-02-21",
		Age:               "11 months",
		Sex:               "Male",
		MRN:               "MRN-2025-0892",
		InsuranceProvider: "Cigna",
		InsuranceID:       "110238214",
		Guardian: Guardian{
			Name:         "James Wang",
			Relationship: "Father",
			Phone:        "(917) 555-1234",
			Email:        "james.wang@email.com",
		},
		Address: Address{
			Street: "1000 Van Ness Ave",
			City:   "San Francisco",
			State:  "CA",
			Zip:    "94118",
		},
		Allergies:           []string{"None"},
		PrimaryCareProvider: "Dr. Monica Kwan, MD",
		Medications: []Medication{
			{
				Name:         "Vitamin D3 Drops",
				Dosage:       "400 IU",
				Frequency:    "Once daily",
				StartDate:    "2025-02-20",
				PrescribedBy: "Dr. Monica Kwan, MD",
				Active:       true,
			},
			{
				Name:         "Infant Multivitamin with Iron",
				Dosage:       "1 mL",
				Frequency:    "Once daily",
				StartDate:    "2025-06-15",
				PrescribedBy: "Dr. Monica Kwan, MD",
				Active:       true,
			},
			{
				Name:         "Nystatin Oral Suspension",
				Dosage:       "1 mL",
				Frequency:    "Four times daily",
				StartDate:    "2025-04-10",
				PrescribedBy: "Dr. Juliana Stone, MD",
				Active:       false,
			},
		},
		LabResults: []LabResult{
			{
				ID:       "lab-001",
				Name:     "Complete Blood Count (CBC)",
				Date:     "2025-11-25",
				Category: "Hematology",
				Status:   LabNormal,
				Results: []LabValue{
					{Test: "WBC", Value: "9.5", Unit: "K/uL", ReferenceRange: "6.0-17.5"},
					{Test: "RBC", Value: "4.5", Unit: "M/uL", ReferenceRange: "3.8-5.4"},
					{Test: "Hemoglobin", Value: "11.8", Unit: "g/dL", ReferenceRange: "10.5-14.0"},
					{Test: "Hematocrit", Value: "35", Unit: "%", ReferenceRange: "32-42"},
					{Test: "Platelets", Value: "285", Unit: "K/uL", ReferenceRange: "150-400"},
				},
				OrderedBy: "Dr. Monica Kwan, MD",
			},
			{
				ID:       "lab-004",
				Name:     "Newborn Screening Labs",
				Date:     "2025-02-23",
				Category: "Newborn",
				Status:   LabNormal,
				Results: []LabValue{
					{Test: "Blood Type", Value: "O", Unit: "Positive", ReferenceRange: "N/A"},
					{Test: "Direct Coombs Test (DCT)", Value: "Negative", Unit: "", ReferenceRange: "Negative"},
					{Test: "Transcutaneous Bilirubin", Value: "5.5", Unit: "mg/dL", ReferenceRange: "<12 (day 2-3)"},
				},
				OrderedBy: "Dr. Carolyn Hume, MD",
				Notes:     "Jaundice risk assessment: None. O Positive blood type.",
			},
			{
				ID:       "lab-002",
				Name:     "Lead Level",
				Date:     "2025-10-20",
				Category: "Toxicology",
				Status:   LabNormal,
				Results: []LabValue{
					{Test: "Blood Lead Level", Value: "1.2", Unit: "mcg/dL", ReferenceRange: "<3.5"},
				},
				OrderedBy: "Dr. Monica Kwan, MD",
			},
			{
				ID:       "lab-003",
				Name:     "Metabolic Panel",
				Date:     "2026-01-20",
				Category: "Chemistry",
				Status:   LabNormal,
				Results: []LabValue{
					{Test: "Glucose", Value: "85", Unit: "mg/dL", ReferenceRange: "60-100"},
					{Test: "BUN", Value: "12", Unit: "mg/dL", ReferenceRange: "5-18"},
					{Test: "Creatinine", Value: "0.2", Unit: "mg/dL", ReferenceRange: "0.1-0.4"},
					{Test: "Sodium", Value: "140", Unit: "mEq/L", ReferenceRange: "136-145"},
					{Test: "Potassium", Value: "4.8", Unit: "mEq/L", ReferenceRange: "3.5-5.5"},
				},
				OrderedBy: "Dr. Monica Kwan, MD",
			},
		},
		ImagingResults: []ImagingResult{
			{
				ID:          "img-001",
				Type:        "Echocardiogram",
				Date:        "2026-01-20",
				Indication:  "Follow-up of known muscular VSD; heart murmur on examination",
				Findings:    "Small mid to apical muscular VSD with left-to-right shunt. Maximum velocity 3.2 m/sec, gradient 41 mmHg. PDA has closed (not visualized). PFO still present with minimal L-R shunt. Normal left and right ventricular size and function. No evidence of pulmonary hypertension. All valves normal.",
				Impression:  "Small muscular VSD, stable from prior. PDA resolved. PFO persists. Recommend pediatric cardiology follow-up for ongoing monitoring.",
				PerformedBy: "Dr. Robert Kim, MD - Pediatric Cardiology",
				Facility:    "SF Children's Imaging Center",
			},
			{
				ID:          "img-005",
				Type:        "Echocardiogram (Newborn)",
				Date:        "2025-02-24",
				Indication:  "Murmur detected on newborn examination",
				Findings:    "Small mid to apical muscular VSD. Small PDA (2.6mm). PFO. All shunts L-R. Normal biventricular size and systolic function. All valves normal in structure and function. No pericardial effusion.",
				Impression:  "Small mid to apical muscular VSD with L-R shunt. Small PDA. PFO. All shunts left-to-right. Otherwise normal newborn echocardiogram.",
				PerformedBy: "Dominic J Blurton, MD - Reading Physician",
				Facility:    "California Pacific Medical Center - Van Ness",
			},
			{
				ID:          "img-002",
				Type:        "Hip Ultrasound",
				Date:        "2025-02-26",
				Indication:  "Newborn screening - breech presentation at birth",
				Findings:    "Bilateral hip joints demonstrate normal alpha angles (>60 degrees). Femoral heads are well-seated in acetabula.",
				Impression:  "Normal bilateral hip ultrasound. No evidence of developmental dysplasia of the hip.",
				PerformedBy: "Dr. Lisa Martinez, MD - Pediatric Radiology",
				Facility:    "Golden Gate Pediatrics - One Daniel Burnham Court",
			},
			{
				ID:          "img-003",
				Type:        "Lumbosacral Spine Ultrasound",
				Date:        "2025-03-07",
				Indication:  "Other symptoms and signs involving the musculoskeletal system (R29.898)",
				Findings:    "Conus medullaris terminates at appropriate level (L1-L2). No evidence of tethered cord.",
				Impression:  "Normal lumbosacral spine ultrasound. No evidence of spinal dysraphism or tethered cord.",
				PerformedBy: "Dr. Lisa Martinez, MD - Pediatric Radiology",
				Facility:    "Golden Gate Pediatrics - 3838 California St",
			},
			{
				ID:          "img-004",
				Type:        "Kidney Ultrasound",
				Date:        "2025-05-20",
				Indication:  "Prenatal hydronephrosis - follow-up",
				Findings:    "Right kidney measures 5.2 cm, left kidney measures 5.0 cm. Mild right-sided hydronephrosis (SFU Grade 1) persists but stable.",
				Impression:  "Stable mild right hydronephrosis. Recommend follow-up ultrasound in 6 months.",
				PerformedBy: "Dr. Lisa Martinez, MD - Pediatric Radiology",
				Facility:    "SF Children's Imaging Center",
			},
		},
		SOAPNotes: []SOAPNote{
			{
				ID:             "soap-001",
				Date:           "2026-01-20",
				VisitType:      "11-Month Well-Child Visit",
				Provider:       "Dr. Monica Kwan, MD",
				ChiefComplaint: "Routine well-child examination",
				Subjective:     "Mother reports he has been doing well overall. Eating a variety of solid foods, formula about 24 oz per day. Crawling, pulling to stand and cruising. Occasionally breathes faster when very active.",
				Objective:      "Weight 9.8 kg (55th percentile), length 74 cm (50th percentile). Grade II/VI systolic murmur best heard at left lower sternal border. Regular rhythm. Lungs clear. Femoral pulses 2+ bilaterally.",
				Assessment:     "1. Healthy 11-month-old male presenting for well-child visit\n2. Grade II/VI systolic heart murmur; echocardiogram shows small muscular VSD with L-to-R shunt\n3. Development appropriate for age\n4. Growth appropriate, following curve",
				Plan:           "1. Discussed echocardiogram results with mother\n2. REFERRAL TO PEDIATRIC CARDIOLOGY for evaluation and ongoing monitoring of VSD\n3. Continue current diet\n4. Continue Vitamin D supplementation\n5. Return for 12-month well-child visit",
				ICD10Codes: []DiagnosisCode{
					{Code: "Z00.121", Description: "Encounter for routine child health examination with abnormal findings"},
					{Code: "Q21.0", Description: "Ventricular septal defect"},
					{Code: "R01.1", Description: "Cardiac murmur, unspecified"},
				},
			},
			{
				ID:             "soap-002",
				Date:           "2025-11-25",
				VisitType:      "9-Month Well-Child Visit",
				Provider:       "Dr. Monica Kwan, MD",
				ChiefComplaint: "Routine well-child examination",
				Subjective:     "Healthy with no illnesses. Eating purees and starting soft finger foods. Crawling on hands and knees.",
				Objective:      "Weight 9.5 kg (52nd percentile). Regular rate and rhythm. Soft systolic murmur at LLSB, stable from prior.",
				Assessment:     "1. Healthy 9-month-old male\n2. Known VSD - stable, soft murmur on exam\n3. Development appropriate for age",
				Plan:           "1. Continue current feeding plan\n2. Continue vitamin D supplementation\n3. VSD monitoring - continue to follow\n4. Return for 12-month visit",
				ICD10Codes: []DiagnosisCode{
					{Code: "Z00.129", Description: "Encounter for routine child health examination without abnormal findings"},
					{Code: "Q21.0", Description: "Ventricular septal defect"},
				},
			},
			{
				ID:             "soap-003",
				Date:           "2025-08-26",
				VisitType:      "6-Month Well-Child Visit",
				Provider:       "Dr. Monica Kwan, MD",
				ChiefComplaint: "Routine well-child examination",
				Subjective:     "Doing well on formula, about 30 oz daily. Rolling both ways, sitting with support.",
				Objective:      "Weight 8.0 kg (48th percentile). RRR, soft systolic murmur at LLSB (known VSD). Lungs clear.",
				Assessment:     "1. Healthy 6-month-old male\n2. Ready for solid foods\n3. Known VSD - stable\n4. Normal development",
				Plan:           "1. Begin infant cereals and single-ingredient purees\n2. Start iron supplement\n3. Continue Vitamin D\n4. Return at 9 months",
			},
			{
				ID:             "soap-004",
				Date:           "2025-07-01",
				VisitType:      "4-Month Well-Child Visit",
				Provider:       "Dr. Monica Kwan, MD",
				ChiefComplaint: "Routine well-child examination",
				Subjective:     "Doing well on formula. Good head control, social smile, cooing and laughing.",
				Objective:      "Weight 7.0 kg (45th percentile). Soft systolic murmur at LLSB, known VSD.",
				Assessment:     "1. Healthy 4-month-old male\n2. Known VSD - stable\n3. Normal growth and development",
				Plan:           "1. Continue formula feeding\n2. Continue Vitamin D supplementation\n3. Kidney ultrasound ordered for follow-up of prenatal hydronephrosis\n4. Return at 6 months",
			},
			{
				ID:             "soap-005",
				Date:           "2025-05-02",
				VisitType:      "2-Month Well-Child Visit",
				Provider:       "Dr. Juliana Stone, MD",
				ChiefComplaint: "Routine well-child examination",
				Subjective:     "Feeding every 3 hours. Starting to sleep longer stretches at night.",
				Objective:      "Weight 5.8 kg (42nd percentile). Soft systolic murmur at LLSB.",
				Assessment:     "1. Healthy 2-month-old male\n2. Known VSD - asymptomatic",
				Plan:           "1. Continue formula\n2. Immunizations given\n3. Return at 4 months",
			},
		},
	}
}
