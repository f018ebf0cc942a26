// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/hybridqa/internal/intent"
)

// Case is one labelled question.
type Case struct {
	Query string        `json:"query"`
	Want  intent.Intent `json:"-"`
}

type caseJSON struct {
	Query string `json:"query"`
	Want  string `json:"want"`
}

// MarshalJSON writes Want by name.
func (c Case) MarshalJSON() ([]byte, error) {
	return json.Marshal(caseJSON{Query: c.Query, Want: c.Want.String()})
}

// UnmarshalJSON accepts Want as a mode name or a label (SQL, RAG, CHAT).
func (c *Case) UnmarshalJSON(data []byte) error {
	var raw caseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	want, err := intent.Parse(raw.Want)
	if err != nil {
		return err
	}
	*c = Case{Query: raw.Query, Want: want}
	return nil
}

// StandardCases is the built-in suite. It mixes keyword hits, questions
// with no keyword and questions that hit both keyword sets.
func StandardCases() []Case {
	return []Case{
		// Structured: statistics over the university table.
		{Query: "서울 지역 대학의 평균 취업률은?", Want: intent.Structured},
		{Query: "등록금이 가장 높은 대학 상위 5개", Want: intent.Structured},
		{Query: "부산 지역 국립대 입학정원 순위", Want: intent.Structured},
		{Query: "사립대와 국립대 취업률 비교", Want: intent.Structured},
		{Query: "경기 지역 대학은 몇 개야?", Want: intent.Structured},

		// Retrieval: policy and procedure questions.
		{Query: "국가장학금 신청 절차가 뭐야?", Want: intent.Retrieval},
		{Query: "학자금 대출 신청 자격 조건", Want: intent.Retrieval},
		{Query: "근로장학금 지원 방법 알려줘", Want: intent.Retrieval},
		{Query: "등록금 분할 납부는 어떻게 해?", Want: intent.Retrieval},
		{Query: "다자녀 장학금 대상이 누구야?", Want: intent.Retrieval},

		// Conversational.
		{Query: "안녕하세요", Want: intent.Conversational},
		{Query: "고마워요!", Want: intent.Conversational},
		{Query: "너는 누구니?", Want: intent.Conversational},
	}
}

// LoadCases reads a JSON array of {"query", "want"} objects.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", path, err)
	}
	for i, c := range cases {
		if strings.TrimSpace(c.Query) == "" {
			return nil, fmt.Errorf("suite %s: case %d has an empty query", path, i+1)
		}
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("suite %s has no cases", path)
	}
	return cases, nil
}
