// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package notify

import (
	"fmt"
	"strings"
)

type template struct {
	subject string
	body    string
}

// templates is keyed by language then Kind; "de" is the only language
// required by HinSchG itself, "en" covers tenants operating in English.
// An unrecognized language falls back to "de".
var templates = map[string]map[Kind]template{
	"de": {
		KindAcknowledgementDue: {
			subject: "Eingangsbestaetigung faellig",
			body:    "Fuer den Vorgang %s ist die 7-Tage-Frist zur Eingangsbestaetigung erreicht.",
		},
		KindFeedbackDue: {
			subject: "Rueckmeldung faellig",
			body:    "Fuer den Vorgang %s ist die 3-Monats-Frist zur Rueckmeldung erreicht.",
		},
		KindEscalated: {
			subject: "Vorgang eskaliert",
			body:    "Der Vorgang %s wurde wegen Fristueberschreitung eskaliert.",
		},
		KindForwarded: {
			subject: "An Ombudsperson weitergeleitet",
			body:    "Der Vorgang %s wurde zur Pruefung an die Ombudsperson weitergeleitet.",
		},
	},
	"en": {
		KindAcknowledgementDue: {
			subject: "Acknowledgement due",
			body:    "Case %s has reached its 7-day acknowledgement deadline.",
		},
		KindFeedbackDue: {
			subject: "Feedback due",
			body:    "Case %s has reached its 3-month feedback deadline.",
		},
		KindEscalated: {
			subject: "Case escalated",
			body:    "Case %s was escalated after missing its deadline.",
		},
		KindForwarded: {
			subject: "Forwarded to ombudsperson",
			body:    "Case %s was forwarded to the ombudsperson for review.",
		},
	},
}

// DefaultTemplater renders Message bodies from the built-in de/en
// template set, substituting the case id into the body.
type DefaultTemplater struct{}

// Render implements Templater.
func (DefaultTemplater) Render(m Message) (string, string, error) {
	lang := strings.ToLower(m.Language)
	set, ok := templates[lang]
	if !ok {
		set = templates["de"]
	}
	t, ok := set[m.Kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification kind %q", m.Kind)
	}
	return t.subject, fmt.Sprintf(t.body, m.CaseID), nil
}
