package learning

import "github.com/clinigraph-server/internal/domain"

// IsBareModifier reports whether the label normalizes to a lone qualifier
// (severity, laterality, topography) with no head noun.
func IsBareModifier(label string) bool {
	return bareModifiers[domain.Normalize(label)]
}

// IsHeadNoun reports whether the label normalizes to a single recognized
// medical head noun.
func IsHeadNoun(label string) bool {
	return headNouns[domain.Normalize(label)]
}

// Curated vocabulary tables backing the admission gate. Kept in one file so
// curation changes stay reviewable as plain diffs. All entries are in
// normalized form (lowercase, no diacritics).

// bareBodyParts are generic anatomy terms that carry no clinical meaning as
// standalone findings. They pass only as measures (e.g. limb circumference).
var bareBodyParts = map[string]bool{
	"arm": true, "leg": true, "hand": true, "foot": true, "head": true,
	"neck": true, "chest": true, "thorax": true, "abdomen": true,
	"back": true, "knee": true, "elbow": true, "shoulder": true,
	"hip": true, "wrist": true, "ankle": true, "finger": true,
	"toe": true, "skin": true, "eye": true, "ear": true, "mouth": true,
}

// bareModifiers are qualifiers with no head noun: severity, laterality,
// topography. They are extraction noise when they arrive alone.
var bareModifiers = map[string]bool{
	"acute": true, "chronic": true, "severe": true, "mild": true,
	"moderate": true, "bilateral": true, "unilateral": true,
	"left": true, "right": true, "proximal": true, "distal": true,
	"palmar": true, "plantar": true, "dorsal": true, "ventral": true,
	"diffuse": true, "localized": true, "isolated": true,
	"superficial": true, "deep": true, "extensive": true,
}

// contextualQualifiers are purely contextual or anatomical qualifiers that
// never stand as findings.
var contextualQualifiers = map[string]bool{
	"history": true, "context": true, "recent": true, "old": true,
	"present": true, "absent": true, "unknown": true, "possible": true,
	"probable": true, "suspected": true,
}

// standaloneEntities are single-word findings recognized as clinically
// meaningful on their own.
var standaloneEntities = map[string]bool{
	"fever": true, "cough": true, "vomiting": true, "diarrhea": true,
	"dyspnea": true, "crackles": true, "jaundice": true, "cyanosis": true,
	"seizure": true, "syncope": true, "headache": true, "pruritus": true,
	"anemia": true, "shock": true, "hypotension": true,
	"hypertension": true, "tachycardia": true, "bradycardia": true,
	"edema": true, "rash": true, "pallor": true, "confusion": true,
	"agitation": true, "coma": true, "oliguria": true, "anuria": true,
}

// headNouns are medical head nouns: a multi-token phrase containing one is
// specific enough to admit.
var headNouns = map[string]bool{
	"pain": true, "edema": true, "fever": true, "rash": true,
	"fracture": true, "hemorrhage": true, "necrosis": true,
	"ulcer": true, "wound": true, "swelling": true, "erythema": true,
	"lesion": true, "paralysis": true, "paresthesia": true,
	"nausea": true, "vomiting": true, "diarrhea": true, "cough": true,
	"dyspnea": true, "syndrome": true, "crackles": true, "murmur": true,
	"deficit": true, "bleeding": true, "shock": true, "anemia": true,
	"jaundice": true, "cyanosis": true, "effusion": true,
	"infiltrate": true, "mass": true, "nodule": true, "abscess": true,
	"stenosis": true, "thrombosis": true, "embolism": true,
	"infection": true, "inflammation": true, "insufficiency": true,
	"failure": true, "arrest": true, "distress": true,
}

// labVocab marks laboratory and measurement vocabulary for the permissive
// auto-approval check.
var labVocab = map[string]bool{
	"level": true, "count": true, "rate": true, "ratio": true,
	"concentration": true, "pressure": true, "saturation": true,
	"hemoglobin": true, "hb": true, "creatinine": true,
	"platelet": true, "platelets": true, "leukocyte": true,
	"leukocytes": true, "glucose": true, "sodium": true,
	"potassium": true, "calcium": true, "crp": true, "inr": true,
	"lactate": true, "bilirubin": true, "troponin": true,
	"ferritin": true, "albumin": true, "urea": true,
}

// phraseWhitelist admits whole phrases that the token heuristics would
// otherwise reject.
var phraseWhitelist = map[string]bool{
	"glasgow score":   true,
	"capillary refill": true,
	"neck stiffness":  true,
	"skin necrosis":   true,
}

// clinicalSuffixes are morphological endings that mark a token as a medical
// term (-itis inflammations, -emia blood findings, -oma masses, ...).
var clinicalSuffixes = []string{
	"itis", "osis", "emia", "aemia", "oma", "pathy", "algia",
	"uria", "penia", "megaly", "plegia", "paresis", "ectasia",
	"rrhagia", "rrhea", "sclerosis",
}
