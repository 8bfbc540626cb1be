package main

import (
	"net/http"
)

// Reference data handlers. Child lists accept an optional parent query
// parameter: no parameter means unfiltered, an unknown parent code
// yields an empty list with status 200.

func handleListDepartments(w http.ResponseWriter, r *http.Request) {
	rows, err := db.Query("SELECT code, name, mngrcode, rprofcode FROM torp_departments ORDER BY name")
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	depts := []Department{}
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.Code, &d.Name, &d.ManagerCode, &d.RProfCode); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		depts = append(depts, d)
	}
	jsonResp(w, depts)
}

func handleListUsers(w http.ResponseWriter, r *http.Request) {
	dept := r.URL.Query().Get("dept")

	query := "SELECT code, name, deptcode FROM torp_users ORDER BY name"
	args := []interface{}{}
	if dept != "" {
		query = "SELECT code, name, deptcode FROM torp_users WHERE deptcode = ? ORDER BY name"
		args = append(args, dept)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	people := []Person{}
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.Code, &p.Name, &p.DeptCode); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		people = append(people, p)
	}
	jsonResp(w, people)
}

func handleListProductLines(w http.ResponseWriter, r *http.Request) {
	rows, err := db.Query("SELECT code, name FROM torp_pline ORDER BY name")
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	lines := []ProductLine{}
	for rows.Next() {
		var l ProductLine
		if err := rows.Scan(&l.Code, &l.Name); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		lines = append(lines, l)
	}
	jsonResp(w, lines)
}

func handleListProductFamilies(w http.ResponseWriter, r *http.Request) {
	pline := r.URL.Query().Get("pline")

	query := "SELECT code, name, pcode FROM torp_pfamily ORDER BY name"
	args := []interface{}{}
	if pline != "" {
		query = "SELECT code, name, pcode FROM torp_pfamily WHERE pcode = ? ORDER BY name"
		args = append(args, pline)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	fams := []ProductFamily{}
	for rows.Next() {
		var f ProductFamily
		if err := rows.Scan(&f.Code, &f.Name, &f.LineCode); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		fams = append(fams, f)
	}
	jsonResp(w, fams)
}

func handleListTypes(w http.ResponseWriter, r *http.Request) {
	rows, err := db.Query("SELECT code, name FROM torp_type ORDER BY name")
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	types := []ReqType{}
	for rows.Next() {
		var t ReqType
		if err := rows.Scan(&t.Code, &t.Name); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		types = append(types, t)
	}
	jsonResp(w, types)
}

func handleListCategories(w http.ResponseWriter, r *http.Request) {
	typeCode := r.URL.Query().Get("type")

	query := "SELECT code, name FROM torp_category ORDER BY name"
	args := []interface{}{}
	if typeCode != "" {
		query = `SELECT c.code, c.name FROM torp_category c
			JOIN torp_link_type_category l ON l.categorycode = c.code
			WHERE l.typecode = ? ORDER BY c.name`
		args = append(args, typeCode)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	cats := []ReqCategory{}
	for rows.Next() {
		var c ReqCategory
		if err := rows.Scan(&c.Code, &c.Name); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		cats = append(cats, c)
	}
	jsonResp(w, cats)
}

func handleListDetails(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	query := "SELECT code, name FROM torp_detail ORDER BY name"
	args := []interface{}{}
	if category != "" {
		query = `SELECT d.code, d.name FROM torp_detail d
			JOIN torp_link_category_detail l ON l.detailcode = d.code
			WHERE l.categorycode = ? ORDER BY d.name`
		args = append(args, category)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	details := []ReqDetail{}
	for rows.Next() {
		var d ReqDetail
		if err := rows.Scan(&d.Code, &d.Name); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		details = append(details, d)
	}
	jsonResp(w, details)
}

func handleListTeamLeads(w http.ResponseWriter, r *http.Request) {
	pline := r.URL.Query().Get("pline")

	query := `SELECT DISTINCT u.code, u.name, u.deptcode FROM torp_users u
		JOIN torp_link_pline_tdtl l ON l.usercode = u.code ORDER BY u.name`
	args := []interface{}{}
	if pline != "" {
		query = `SELECT u.code, u.name, u.deptcode FROM torp_users u
			JOIN torp_link_pline_tdtl l ON l.usercode = u.code
			WHERE l.plinecode = ? ORDER BY u.name`
		args = append(args, pline)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	leads := []Person{}
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.Code, &p.Name, &p.DeptCode); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		leads = append(leads, p)
	}
	jsonResp(w, leads)
}

func handleListSpecialists(w http.ResponseWriter, r *http.Request) {
	tdtl := r.URL.Query().Get("tdtl")

	query := `SELECT DISTINCT u.code, u.name, u.deptcode FROM torp_users u
		JOIN torp_link_tdtl_tdsp l ON l.tdspcode = u.code ORDER BY u.name`
	args := []interface{}{}
	if tdtl != "" {
		query = `SELECT u.code, u.name, u.deptcode FROM torp_users u
			JOIN torp_link_tdtl_tdsp l ON l.tdspcode = u.code
			WHERE l.tdtlcode = ? ORDER BY u.name`
		args = append(args, tdtl)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	specs := []Person{}
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.Code, &p.Name, &p.DeptCode); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		specs = append(specs, p)
	}
	jsonResp(w, specs)
}

func handleListTaskGroupsL1(w http.ResponseWriter, r *http.Request) {
	rows, err := db.Query("SELECT code, name FROM torp_taskgrp_l1 ORDER BY name")
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	groups := []TaskGroupL1{}
	for rows.Next() {
		var g TaskGroupL1
		if err := rows.Scan(&g.Code, &g.Name); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		groups = append(groups, g)
	}
	jsonResp(w, groups)
}

func handleListTaskGroupsL2(w http.ResponseWriter, r *http.Request) {
	l1 := r.URL.Query().Get("l1")

	query := "SELECT code, name, pcode FROM torp_taskgrp_l2 ORDER BY name"
	args := []interface{}{}
	if l1 != "" {
		query = "SELECT code, name, pcode FROM torp_taskgrp_l2 WHERE pcode = ? ORDER BY name"
		args = append(args, l1)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	groups := []TaskGroupL2{}
	for rows.Next() {
		var g TaskGroupL2
		if err := rows.Scan(&g.Code, &g.Name, &g.ParentCode); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		groups = append(groups, g)
	}
	jsonResp(w, groups)
}
