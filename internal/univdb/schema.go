// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package univdb

// TableName is the only table the structured pipeline queries.
const TableName = "university_info"

// Schema creates university_info and its lookup indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS university_info (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  no INTEGER,
  school_name TEXT,
  campus_name TEXT,
  school_class TEXT,
  school_type TEXT,
  establish_type TEXT,
  region TEXT,
  admission_capacity_2025 INTEGER,
  graduates_2025 INTEGER,
  full_time_faculty_2025 INTEGER,
  enrolled_2025 INTEGER,
  freshman_competition_2025 REAL,
  freshman_fill_rate_2025 REAL,
  employment_rate_2024 REAL,
  intl_students_2025 INTEGER,
  students_per_faculty_2025 REAL,
  faculty_secured_rate_quota_2025 REAL,
  faculty_secured_rate_enrolled_2025 REAL,
  faculty_teaching_ratio_2025 REAL,
  scholarship_per_student_2025_won REAL,
  tuition_avg_2025_thousand REAL,
  edu_cost_per_student_2025_thousand REAL,
  dorm_capacity_rate_2024 REAL,
  books_per_student_2024 REAL
);

CREATE INDEX IF NOT EXISTS idx_univ_region ON university_info (school_name, region);
CREATE INDEX IF NOT EXISTS idx_employment_2024 ON university_info (employment_rate_2024);
`

// Kind is the storage class a CSV cell is coerced to.
type Kind int

const (
	// KindText is stored verbatim.
	KindText Kind = iota
	// KindInt strips separators; unparseable cells become 0.
	KindInt
	// KindReal strips separators; unparseable cells become NULL.
	KindReal
)

// Column maps one CSV header onto a table column.
type Column struct {
	Header string
	Name   string
	Kind   Kind
}

// Columns lists the CSV headers ingested, in table order. Headers contain
// embedded newlines exactly as exported by the data portal.
var Columns = []Column{
	{"No", "no", KindInt},
	{"학교명", "school_name", KindText},
	{"본분교명", "campus_name", KindText},
	{"학교종류", "school_class", KindText},
	{"학교유형", "school_type", KindText},
	{"설립유형", "establish_type", KindText},
	{"지역명", "region", KindText},
	{"입학정원(학부)\n(2025,명)", "admission_capacity_2025", KindInt},
	{"졸업생수(학부)\n(2025,명)", "graduates_2025", KindInt},
	{"전임교원수(학부+대학원)\n(2025,명)", "full_time_faculty_2025", KindInt},
	{"재학생(학부)\n(2025,명)", "enrolled_2025", KindInt},
	{"신입생 경쟁률(학부)\n(2025,:1)", "freshman_competition_2025", KindReal},
	{"신입생 충원율(학부)\n(2025,%)", "freshman_fill_rate_2025", KindReal},
	{"취업률(학부)\n(2024,%)", "employment_rate_2024", KindReal},
	{"외국인 학생 수(학부)\n(2025,명)", "intl_students_2025", KindInt},
	{"전임교원 1인당 학생 수(학생정원기준)(학부+대학원)\n(2025,명)", "students_per_faculty_2025", KindReal},
	{"전임교원 확보율(학생정원기준)(학부+대학원)\n(2025,%)", "faculty_secured_rate_quota_2025", KindReal},
	{"전임 교원 확보율(재학생 기준)(학부+대학원)\n(2025,%)", "faculty_secured_rate_enrolled_2025", KindReal},
	{"전임교원 강의 담당 비율(학부)\n(2025,%)", "faculty_teaching_ratio_2025", KindReal},
	{"학생 1인당 연간 장학금(학부)\n(2025,원)", "scholarship_per_student_2025_won", KindReal},
	{"연평균 등록금(학부)\n(2025,천원)", "tuition_avg_2025_thousand", KindReal},
	{"학생 1인당 교육비(학부+대학원)\n(2025,천원)", "edu_cost_per_student_2025_thousand", KindReal},
	{"기숙사 수용율(학부+대학원)\n(2024,%)", "dorm_capacity_rate_2024", KindReal},
	{"학생 1인당 도서 자료 수(학부+대학원)\n(2024,권)", "books_per_student_2024", KindReal},
}
