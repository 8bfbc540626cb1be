package main

import "torp/internal/models"

// Type aliases so handler code can use unqualified names while the
// definitions live in internal/models.

type APIResponse = models.APIResponse
type Meta = models.Meta
type Department = models.Department
type Person = models.Person
type ProductLine = models.ProductLine
type ProductFamily = models.ProductFamily
type ReqType = models.ReqType
type ReqCategory = models.ReqCategory
type ReqDetail = models.ReqDetail
type TaskGroupL1 = models.TaskGroupL1
type TaskGroupL2 = models.TaskGroupL2
type Request = models.Request
type WorkOrder = models.WorkOrder
type WorkItem = models.WorkItem
type Attachment = models.Attachment
type AuditEntry = models.AuditEntry
type DashboardData = models.DashboardData
